package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carlos-Arce04/diseno-store/internal/adapter/identity"
	"github.com/Carlos-Arce04/diseno-store/internal/adapter/storage"
	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[int]domain.Product
	err      error
}

func newStubCatalog(products ...domain.Product) *stubCatalog {
	m := make(map[int]domain.Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	return &stubCatalog{products: m}
}

func (s *stubCatalog) ProductByID(ctx context.Context, id int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (s *stubCatalog) Products(ctx context.Context, page int) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubCatalog) ProductsByCategory(ctx context.Context, categoryID, page int) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubCatalog) Search(ctx context.Context, query string, page int) ([]domain.Product, error) {
	return nil, nil
}

func (s *stubCatalog) Categories(ctx context.Context) ([]domain.Category, error) {
	return nil, nil
}

var testProducts = []domain.Product{
	{ID: 10, Title: "Mug", Price: 9.5, Images: []string{"https://img/mug.png"}, Category: domain.Category{ID: 2}},
	{ID: 20, Title: "Hoodie", Price: 39.0, Images: []string{"https://img/hoodie.png"}, Category: domain.Category{ID: 1}},
}

func newTestSession(mem *storage.MemoryAdapter, shopperID string) (*CartSession, *StockService) {
	stock := NewStockService(mem, logger.NewNop())
	sess := NewCartSession(stock, mem, newStubCatalog(testProducts...), logger.NewNop())
	sess.SetShopper(shopperID)
	return sess, stock
}

func storeStock(t *testing.T, mem *storage.MemoryAdapter, productID int) domain.Stock {
	t.Helper()
	stock, _, err := mem.GetStock(context.Background(), productID)
	require.NoError(t, err)
	return stock
}

func storeCart(t *testing.T, mem *storage.MemoryAdapter, shopperID string) []domain.CartItem {
	t.Helper()
	items, err := mem.GetCart(context.Background(), shopperID)
	require.NoError(t, err)
	return items
}

// The full unsized walkthrough: seed 5, deplete through adds, fail the
// sixth, put one unit back through a decrease, then restore everything
// with a remove.
func TestCartSession_UnsizedScenario(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	assert.Equal(t, 4, storeStock(t, mem, 10).Available("default"))
	cart := storeCart(t, mem, "shopper-1")
	require.Len(t, cart, 1)
	assert.Equal(t, "10_default", cart[0].Key)
	assert.Equal(t, 1, cart[0].Quantity)
	assert.Equal(t, "Mug", cart[0].Title)
	assert.Equal(t, 9.5, cart[0].Price)
	assert.Equal(t, "https://img/mug.png", cart[0].Image)

	for i := 0; i < 4; i++ {
		added, err = sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
		require.NoError(t, err)
		require.True(t, added)
	}
	assert.Equal(t, 0, storeStock(t, mem, 10).Available("default"))
	cart = storeCart(t, mem, "shopper-1")
	require.Len(t, cart, 1)
	assert.Equal(t, 5, cart[0].Quantity)

	// sixth add: out of stock, nothing changes
	added, err = sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 0, storeStock(t, mem, 10).Available("default"))
	assert.Equal(t, 5, storeCart(t, mem, "shopper-1")[0].Quantity)

	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "default", -1))
	assert.Equal(t, 1, storeStock(t, mem, 10).Available("default"))
	assert.Equal(t, 4, storeCart(t, mem, "shopper-1")[0].Quantity)

	require.NoError(t, sess.RemoveFromCart(ctx, 10, "default"))
	assert.Equal(t, 5, storeStock(t, mem, 10).Available("default"))
	assert.Empty(t, storeCart(t, mem, "shopper-1"))
}

// Sized variants are independent counters: depleting M leaves L intact.
func TestCartSession_SizedScenario(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		added, err := sess.AddToCart(ctx, domain.Product{ID: 20}, 1, "M")
		require.NoError(t, err)
		require.True(t, added)
	}
	added, err := sess.AddToCart(ctx, domain.Product{ID: 20}, 1, "M")
	require.NoError(t, err)
	assert.False(t, added)

	added, err = sess.AddToCart(ctx, domain.Product{ID: 20}, 1, "L")
	require.NoError(t, err)
	assert.True(t, added)

	stock := storeStock(t, mem, 20)
	assert.Equal(t, 0, stock.Available("M"))
	assert.Equal(t, 4, stock.Available("L"))
	assert.Equal(t, 5, stock.Available("XL"))

	cart := storeCart(t, mem, "shopper-1")
	require.Len(t, cart, 2)
}

func TestCartSession_QuantityZeroRemoval(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "default", -1))

	assert.Empty(t, storeCart(t, mem, "shopper-1"))
	assert.Equal(t, 5, storeStock(t, mem, 10).Available("default"))
}

func TestCartSession_UpdateQuantityAbsentItem(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")

	require.NoError(t, sess.UpdateQuantity(context.Background(), 10, 2, "default", 1))

	assert.Empty(t, storeCart(t, mem, "shopper-1"))
	_, ok, err := mem.GetStock(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, ok, "no-op must not touch the ledger")
}

func TestCartSession_IncreaseAbortsWhenOutOfStock(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	require.NoError(t, mem.SetStock(context.Background(), 10, domain.Stock{"default": 1}))
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	// pool is empty now; the increase must leave the quantity alone
	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "default", 1))

	cart := storeCart(t, mem, "shopper-1")
	require.Len(t, cart, 1)
	assert.Equal(t, 1, cart[0].Quantity)
	assert.Equal(t, 0, storeStock(t, mem, 10).Available("default"))
}

func TestCartSession_ClearCart(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
		require.NoError(t, err)
		require.True(t, added)
	}
	added, err := sess.AddToCart(ctx, domain.Product{ID: 20}, 1, "M")
	require.NoError(t, err)
	require.True(t, added)

	require.NoError(t, sess.ClearCart(ctx))

	assert.Empty(t, storeCart(t, mem, "shopper-1"))
	assert.Equal(t, 5, storeStock(t, mem, 10).Available("default"))
	assert.Equal(t, 5, storeStock(t, mem, 20).Available("M"))
}

func TestCartSession_LookupFailureLeavesEverythingUntouched(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	stock := NewStockService(mem, logger.NewNop())
	cat := newStubCatalog()
	cat.err = errors.New("catalog unreachable")
	sess := NewCartSession(stock, mem, cat, logger.NewNop())
	sess.SetShopper("shopper-1")

	added, err := sess.AddToCart(context.Background(), domain.Product{ID: 10}, 2, "")
	require.Error(t, err)
	assert.False(t, added)
	assert.Empty(t, storeCart(t, mem, "shopper-1"))
}

// flakyCartStore lets a test fail the persist step after a successful
// reservation.
type flakyCartStore struct {
	*storage.MemoryAdapter
	failSave atomic.Bool
}

func (f *flakyCartStore) SaveCart(ctx context.Context, shopperID string, items []domain.CartItem) error {
	if f.failSave.Load() {
		return errors.New("write timed out")
	}
	return f.MemoryAdapter.SaveCart(ctx, shopperID, items)
}

func TestCartSession_PersistFailureAfterReserveLeavesLedgerDecremented(t *testing.T) {
	flaky := &flakyCartStore{MemoryAdapter: storage.NewMemoryAdapter()}
	stock := NewStockService(flaky, logger.NewNop())
	sess := NewCartSession(stock, flaky, newStubCatalog(testProducts...), logger.NewNop())
	sess.SetShopper("shopper-1")
	ctx := context.Background()

	flaky.failSave.Store(true)
	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.Error(t, err)
	assert.False(t, added)

	// the known consistency gap: the unit stays reserved, the persisted
	// cart never saw the item
	assert.Equal(t, 4, storeStock(t, flaky.MemoryAdapter, 10).Available("default"))
	assert.Empty(t, storeCart(t, flaky.MemoryAdapter, "shopper-1"))
}

func TestCartSession_MutationsWithoutShopperAreNoOps(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	stock := NewStockService(mem, logger.NewNop())
	sess := NewCartSession(stock, mem, newStubCatalog(testProducts...), logger.NewNop())
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	assert.False(t, added)
	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "default", 1))
	require.NoError(t, sess.RemoveFromCart(ctx, 10, "default"))
	require.NoError(t, sess.ClearCart(ctx))

	_, ok, err := mem.GetStock(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCartSession_LogoutZeroesViewImmediately(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	sess.SetShopper("")
	assert.Empty(t, sess.Items())

	// the persisted cart survives the sign-out
	assert.Len(t, storeCart(t, mem, "shopper-1"), 1)
}

func TestCartSession_SubscriberSeesPersistedChanges(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	updates, cancel := sess.Subscribe()
	defer cancel()

	// first emission is the current (empty) snapshot
	select {
	case items := <-updates:
		assert.Empty(t, items)
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	require.Eventually(t, func() bool {
		items := sess.Items()
		return len(items) == 1 && items[0].Quantity == 1
	}, time.Second, 5*time.Millisecond)
}

// Two sessions of the same shopper model two devices: a mutation on one
// must reach the other through the store subscription.
func TestCartSession_MultiDeviceVisibility(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	phone, _ := newTestSession(mem, "shopper-1")
	tablet, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := phone.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)

	require.Eventually(t, func() bool {
		items := tablet.Items()
		return len(items) == 1 && items[0].Key == "10_default"
	}, time.Second, 5*time.Millisecond)
}

// Concurrent shoppers race for 5 units; exactly 5 adds may win. The
// ledger is seeded up front so every attempt goes straight to the
// reservation path.
func TestCartSession_NoOversellAcrossShoppers(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	ctx := context.Background()
	require.NoError(t, mem.SetStock(ctx, 10, domain.SeedStock(2)))

	const shoppers = 10
	const attemptsEach = 5

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < shoppers; i++ {
		sess, _ := newTestSession(mem, fmt.Sprintf("shopper-%d", i))
		wg.Add(1)
		go func(s *CartSession) {
			defer wg.Done()
			for j := 0; j < attemptsEach; j++ {
				added, err := s.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
				if err == nil && added {
					successCount.Add(1)
				}
			}
		}(sess)
	}
	wg.Wait()

	assert.Equal(t, int32(5), successCount.Load())
	assert.Equal(t, 0, storeStock(t, mem, 10).Available("default"))
}

// A single device-owned session driven by the identity watcher: sign-in
// loads the persisted cart, an account switch swaps it, sign-out zeroes
// the view.
func TestCartSession_RunFollowsIdentityTransitions(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, mem.SaveCart(ctx, "ana", []domain.CartItem{
		{Key: "10_default", ID: 10, Title: "Mug", Quantity: 2},
	}))
	require.NoError(t, mem.SaveCart(ctx, "bruno", []domain.CartItem{
		{Key: "20_M", ID: 20, Title: "Hoodie", Size: "M", Quantity: 1},
	}))

	sess, _ := newTestSession(mem, "")
	ident := identity.NewProvider()
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(ctx, ident)
	}()

	ident.Set("ana")
	require.Eventually(t, func() bool {
		items := sess.Items()
		return len(items) == 1 && items[0].Key == "10_default"
	}, time.Second, 5*time.Millisecond)

	ident.Set("bruno")
	require.Eventually(t, func() bool {
		items := sess.Items()
		return len(items) == 1 && items[0].Key == "20_M"
	}, time.Second, 5*time.Millisecond)

	ident.Set("")
	require.Eventually(t, func() bool {
		return len(sess.Items()) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not stop on cancel")
	}
}

// A quantity update is a single-unit step whatever delta the caller
// passes; otherwise quantities and reservations drift apart.
func TestCartSession_UpdateQuantityStepsOneUnit(t *testing.T) {
	mem := storage.NewMemoryAdapter()
	sess, _ := newTestSession(mem, "shopper-1")
	ctx := context.Background()

	added, err := sess.AddToCart(ctx, domain.Product{ID: 10}, 2, "")
	require.NoError(t, err)
	require.True(t, added)
	require.Equal(t, 4, storeStock(t, mem, 10).Available("default"))

	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "", 3))
	items := storeCart(t, mem, "shopper-1")
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 3, storeStock(t, mem, 10).Available("default"))

	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "", -4))
	items = storeCart(t, mem, "shopper-1")
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 4, storeStock(t, mem, 10).Available("default"))

	// zero delta touches nothing
	require.NoError(t, sess.UpdateQuantity(ctx, 10, 2, "", 0))
	items = storeCart(t, mem, "shopper-1")
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 4, storeStock(t, mem, 10).Available("default"))
}
