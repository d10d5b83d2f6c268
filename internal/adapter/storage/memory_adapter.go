package storage

import (
	"context"
	"sync"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// MemoryAdapter implements port.StockStore and port.CartStore in
// process memory. The mutex plays the role of the store's transaction
// primitive: every read-check-write runs under it. Used by unit tests
// and the "memory" backend for local development.
type MemoryAdapter struct {
	mu       sync.Mutex
	stocks   map[int]domain.Stock
	carts    map[string][]domain.CartItem
	watchers map[string]map[int]chan []domain.CartItem
	nextW    int
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		stocks:   make(map[int]domain.Stock),
		carts:    make(map[string][]domain.CartItem),
		watchers: make(map[string]map[int]chan []domain.CartItem),
	}
}

func (m *MemoryAdapter) GetStock(ctx context.Context, productID int) (domain.Stock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stocks[productID]
	if !ok {
		return nil, false, nil
	}
	return stock.Clone(), true, nil
}

func (m *MemoryAdapter) SetStock(ctx context.Context, productID int, stock domain.Stock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[productID] = stock.Clone()
	return nil
}

func (m *MemoryAdapter) ReserveUnit(ctx context.Context, productID int, variant string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks[productID]
	if !ok {
		return 0, domain.ErrStockNotFound
	}
	if stock.Available(variant) < 1 {
		return 0, domain.ErrOutOfStock
	}
	stock[variant]--
	return stock[variant], nil
}

func (m *MemoryAdapter) ReleaseUnit(ctx context.Context, productID int, variant string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks[productID]
	if !ok {
		return 0, domain.ErrStockNotFound
	}
	stock[variant]++
	return stock[variant], nil
}

func (m *MemoryAdapter) GetCart(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneItems(m.carts[shopperID]), nil
}

func (m *MemoryAdapter) SaveCart(ctx context.Context, shopperID string, items []domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts[shopperID] = domain.CloneItems(items)
	for _, ch := range m.watchers[shopperID] {
		update := domain.CloneItems(items)
		select {
		case ch <- update:
		default:
			// evict the oldest buffered state, the latest must land
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
	return nil
}

func (m *MemoryAdapter) WatchCart(ctx context.Context, shopperID string) (<-chan []domain.CartItem, error) {
	ch := make(chan []domain.CartItem, 16)

	m.mu.Lock()
	id := m.nextW
	m.nextW++
	if m.watchers[shopperID] == nil {
		m.watchers[shopperID] = make(map[int]chan []domain.CartItem)
	}
	m.watchers[shopperID][id] = ch
	ch <- domain.CloneItems(m.carts[shopperID])
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		if existing, ok := m.watchers[shopperID][id]; ok {
			delete(m.watchers[shopperID], id)
			close(existing)
		}
		m.mu.Unlock()
	}()
	return ch, nil
}
