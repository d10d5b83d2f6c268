package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
	"github.com/Carlos-Arce04/diseno-store/internal/port"
)

// StockService is the stock ledger and reservation engine. The store is
// authoritative; the service keeps a process-local read cache per product
// so views can render remaining stock without re-fetching. The cache is
// only ever refreshed from store-confirmed counts.
type StockService struct {
	store port.StockStore
	log   *logger.Logger

	mu    sync.RWMutex
	cache map[int]domain.Stock
}

func NewStockService(store port.StockStore, log *logger.Logger) *StockService {
	return &StockService{
		store: store,
		log:   log,
		cache: make(map[int]domain.Stock),
	}
}

// Initialize seeds the stock record for a product on first reference.
// Idempotent: an existing record only refreshes the local cache. The
// get-then-set pair is not one store transaction: two clients racing the
// very first reference can both see no record and the later seed wins.
// Only Reserve carries store-level atomicity; callers that need a fixed
// pool seed it out of band before opening traffic.
func (s *StockService) Initialize(ctx context.Context, productID, categoryID int) error {
	stock, ok, err := s.store.GetStock(ctx, productID)
	if err != nil {
		return fmt.Errorf("load stock record: %w", err)
	}
	if ok {
		s.setCache(productID, stock)
		return nil
	}

	seeded := domain.SeedStock(categoryID)
	if err := s.store.SetStock(ctx, productID, seeded); err != nil {
		return fmt.Errorf("seed stock record: %w", err)
	}
	s.setCache(productID, seeded)
	s.log.Info("stock record seeded",
		"product_id", productID, "category_id", categoryID, "variants", len(seeded))
	return nil
}

// Read fetches the current stock record from the store and refreshes the
// cache. Fails with domain.ErrStockNotFound when the product is not
// tracked yet.
func (s *StockService) Read(ctx context.Context, productID int) (domain.Stock, error) {
	stock, ok, err := s.store.GetStock(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load stock record: %w", err)
	}
	if !ok {
		return nil, domain.ErrStockNotFound
	}
	s.setCache(productID, stock)
	return stock.Clone(), nil
}

// Snapshot returns the cached stock record, ok=false when the product has
// not been seen by this process yet.
func (s *StockService) Snapshot(productID int) (domain.Stock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stock, ok := s.cache[productID]
	if !ok {
		return nil, false
	}
	return stock.Clone(), true
}

// Reserve claims one unit of a variant. It is a single atomic
// read-check-write at the store; two concurrent reservations can never
// both succeed on the last unit. Missing records, insufficient stock and
// transaction failures all collapse to false.
func (s *StockService) Reserve(ctx context.Context, productID int, variant string) bool {
	remaining, err := s.store.ReserveUnit(ctx, productID, variant)
	if err != nil {
		if !errors.Is(err, domain.ErrOutOfStock) && !errors.Is(err, domain.ErrStockNotFound) {
			s.log.Warn("stock reservation aborted",
				"product_id", productID, "variant", variant, "error", err)
		}
		return false
	}
	s.setVariant(productID, variant, remaining)
	return true
}

// Release returns one unit of a variant to the pool, undoing a
// reservation.
func (s *StockService) Release(ctx context.Context, productID int, variant string) error {
	count, err := s.store.ReleaseUnit(ctx, productID, variant)
	if err != nil {
		return fmt.Errorf("release unit %d/%s: %w", productID, variant, err)
	}
	s.setVariant(productID, variant, count)
	return nil
}

func (s *StockService) setCache(productID int, stock domain.Stock) {
	s.mu.Lock()
	s.cache[productID] = stock.Clone()
	s.mu.Unlock()
}

func (s *StockService) setVariant(productID int, variant string, count int) {
	s.mu.Lock()
	stock, ok := s.cache[productID]
	if !ok {
		stock = make(domain.Stock)
		s.cache[productID] = stock
	}
	stock[variant] = count
	s.mu.Unlock()
}
