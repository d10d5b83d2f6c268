package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
	"github.com/Carlos-Arce04/diseno-store/internal/port"
)

// observerBuffer bounds each observer channel. A slow observer keeps
// receiving in write order but may miss intermediate states.
const observerBuffer = 16

// CartSession wires one shopper identity to a live subscription on their
// persisted cart and drives the reservation engine and the cart record
// together as one user-facing operation per mutation.
//
// All collaborators are injected; views attach through Subscribe rather
// than any shared global state. Mutations are serialized per session:
// compound operations (resolve, initialize, reserve, persist) never
// interleave for one shopper on one client. Cross-client safety rests
// entirely on the store's transaction primitive.
type CartSession struct {
	stock   *StockService
	carts   port.CartStore
	catalog port.Catalog
	log     *logger.Logger

	// opMu serializes whole compound mutations.
	opMu sync.Mutex

	// mu guards the fields below.
	mu          sync.Mutex
	shopperID   string
	items       []domain.CartItem
	watchCancel context.CancelFunc
	observers   map[int]chan []domain.CartItem
	nextObs     int
}

func NewCartSession(stock *StockService, carts port.CartStore, catalog port.Catalog, log *logger.Logger) *CartSession {
	return &CartSession{
		stock:     stock,
		carts:     carts,
		catalog:   catalog,
		log:       log,
		observers: make(map[int]chan []domain.CartItem),
	}
}

// SetShopper switches the session to a shopper identity. An empty id
// (sign-out) zeroes the local view immediately, detaches the store
// subscription and suspends persistence. A non-empty id resubscribes;
// the persisted cart replaces the local view wholesale on first emission.
func (c *CartSession) SetShopper(id string) {
	c.mu.Lock()
	if c.watchCancel != nil {
		c.watchCancel()
		c.watchCancel = nil
	}
	c.shopperID = id
	if id == "" {
		c.items = nil
		c.broadcastLocked(nil)
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.watchCancel = cancel
	c.mu.Unlock()

	ch, err := c.carts.WatchCart(ctx, id)
	if err != nil {
		c.log.Error("cart subscription failed", "shopper_id", id, "error", err)
		cancel()
		return
	}
	go c.watchLoop(id, ch)
}

func (c *CartSession) watchLoop(id string, ch <-chan []domain.CartItem) {
	for items := range ch {
		c.mu.Lock()
		if c.shopperID != id {
			c.mu.Unlock()
			return
		}
		c.items = domain.CloneItems(items)
		c.broadcastLocked(items)
		c.mu.Unlock()
	}
}

// Run drives the session from an identity watcher until ctx is
// cancelled: every sign-in, sign-out or account switch re-points the
// session at the new shopper. Used by embedding clients that own a single
// session for the device.
func (c *CartSession) Run(ctx context.Context, ident port.Identity) {
	for id := range ident.Watch(ctx) {
		c.SetShopper(id)
	}
	c.SetShopper("")
}

// Subscribe attaches a view to the live cart. The current snapshot is
// emitted first; afterwards every persisted change is delivered in write
// order, including changes initiated by this session. The returned cancel
// func detaches the view and closes the channel.
func (c *CartSession) Subscribe() (<-chan []domain.CartItem, func()) {
	ch := make(chan []domain.CartItem, observerBuffer)

	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = ch
	ch <- domain.CloneItems(c.items)
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if existing, ok := c.observers[id]; ok {
			delete(c.observers, id)
			close(existing)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Items returns the current local line-item snapshot.
func (c *CartSession) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneItems(c.items)
}

// AddToCart resolves the full product from the catalog, makes sure the
// stock ledger entry exists, reserves one unit and upserts the line item.
// Returns false with the cart untouched when the reservation fails; a
// catalog or persistence failure is returned as an error.
func (c *CartSession) AddToCart(ctx context.Context, stub domain.Product, categoryID int, size string) (bool, error) {
	if size == "" {
		size = domain.DefaultVariant
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	shopper := c.currentShopper()
	if shopper == "" {
		return false, nil
	}

	full, err := c.catalog.ProductByID(ctx, stub.ID)
	if err != nil {
		return false, fmt.Errorf("resolve product %d: %w", stub.ID, err)
	}

	if err := c.stock.Initialize(ctx, full.ID, categoryID); err != nil {
		return false, fmt.Errorf("initialize stock %d: %w", full.ID, err)
	}

	if !c.stock.Reserve(ctx, full.ID, size) {
		return false, nil
	}

	key := domain.ItemKey(full.ID, size)
	c.mu.Lock()
	updated := domain.CloneItems(c.items)
	if i := domain.FindItem(updated, key); i >= 0 {
		updated[i].Quantity++
	} else {
		updated = append(updated, domain.CartItem{
			Key:        key,
			ID:         full.ID,
			Title:      full.Title,
			Price:      full.Price,
			Size:       size,
			Quantity:   1,
			CategoryID: categoryID,
			Image:      full.ImageURL(),
		})
	}
	c.items = updated
	c.mu.Unlock()

	if err := c.carts.SaveCart(ctx, shopper, updated); err != nil {
		// The reserved unit is not returned here; the ledger and the cart
		// record have drifted and only this log records it.
		c.log.Error("cart persist failed after reservation",
			"shopper_id", shopper, "product_id", full.ID, "variant", size, "error", err)
		return false, fmt.Errorf("persist cart: %w", err)
	}
	return true, nil
}

// UpdateQuantity moves an existing line item one unit in the direction
// of delta; a reserved unit backs every counted unit, so there is no
// multi-unit step. Increases are guarded by a reservation and abort
// silently when it fails; decreases release the unit before the quantity
// is reduced. A quantity at or below zero removes the line item. No-op
// when the item is absent or delta is zero.
func (c *CartSession) UpdateQuantity(ctx context.Context, productID, categoryID int, size string, delta int) error {
	if size == "" {
		size = domain.DefaultVariant
	}
	switch {
	case delta > 0:
		delta = 1
	case delta < 0:
		delta = -1
	default:
		return nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	shopper := c.currentShopper()
	if shopper == "" {
		return nil
	}

	key := domain.ItemKey(productID, size)
	c.mu.Lock()
	idx := domain.FindItem(c.items, key)
	c.mu.Unlock()
	if idx < 0 {
		return nil
	}

	if delta > 0 {
		if !c.stock.Reserve(ctx, productID, size) {
			return nil
		}
	} else if delta < 0 {
		if err := c.stock.Release(ctx, productID, size); err != nil {
			c.log.Warn("stock release failed, quantity unchanged",
				"shopper_id", shopper, "product_id", productID, "variant", size, "error", err)
			return nil
		}
	}

	c.mu.Lock()
	updated := domain.CloneItems(c.items)
	idx = domain.FindItem(updated, key)
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}
	newQty := updated[idx].Quantity + delta
	if newQty > 0 {
		updated[idx].Quantity = newQty
	} else {
		updated = append(updated[:idx], updated[idx+1:]...)
	}
	c.items = updated
	c.mu.Unlock()

	if err := c.carts.SaveCart(ctx, shopper, updated); err != nil {
		c.log.Error("cart persist failed after stock adjustment",
			"shopper_id", shopper, "product_id", productID, "variant", size, "error", err)
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// RemoveFromCart drops a line item, returning one unit to the pool per
// unit of its quantity. No-op when the item is absent.
func (c *CartSession) RemoveFromCart(ctx context.Context, productID int, size string) error {
	if size == "" {
		size = domain.DefaultVariant
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	shopper := c.currentShopper()
	if shopper == "" {
		return nil
	}

	key := domain.ItemKey(productID, size)
	c.mu.Lock()
	idx := domain.FindItem(c.items, key)
	var qty int
	if idx >= 0 {
		qty = c.items[idx].Quantity
	}
	c.mu.Unlock()
	if idx < 0 {
		return nil
	}

	c.releaseUnits(ctx, shopper, productID, size, qty)

	c.mu.Lock()
	updated := domain.CloneItems(c.items)
	if i := domain.FindItem(updated, key); i >= 0 {
		updated = append(updated[:i], updated[i+1:]...)
	}
	c.items = updated
	c.mu.Unlock()

	if err := c.carts.SaveCart(ctx, shopper, updated); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// ClearCart releases every reserved unit and replaces the cart with the
// empty set.
func (c *CartSession) ClearCart(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	shopper := c.currentShopper()
	if shopper == "" {
		return nil
	}

	c.mu.Lock()
	items := domain.CloneItems(c.items)
	c.mu.Unlock()

	for _, it := range items {
		c.releaseUnits(ctx, shopper, it.ID, it.Size, it.Quantity)
	}

	c.mu.Lock()
	c.items = []domain.CartItem{}
	c.mu.Unlock()

	if err := c.carts.SaveCart(ctx, shopper, []domain.CartItem{}); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// releaseUnits returns count units one at a time; each release is its own
// atomic increment, so a failure mid-loop loses at most the remaining
// units and is logged rather than propagated.
func (c *CartSession) releaseUnits(ctx context.Context, shopper string, productID int, size string, count int) {
	for i := 0; i < count; i++ {
		if err := c.stock.Release(ctx, productID, size); err != nil {
			c.log.Warn("stock release failed",
				"shopper_id", shopper, "product_id", productID, "variant", size,
				"released", i, "of", count, "error", err)
		}
	}
}

func (c *CartSession) currentShopper() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shopperID
}

// broadcastLocked fans an update out to every observer. Caller holds mu;
// sends never block: when an observer's buffer is full the oldest
// buffered state is evicted so the latest state always lands.
func (c *CartSession) broadcastLocked(items []domain.CartItem) {
	for _, ch := range c.observers {
		update := domain.CloneItems(items)
		for {
			select {
			case ch <- update:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}
