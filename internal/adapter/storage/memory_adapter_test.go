package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

func TestMemoryReserveUnit(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter()

	if _, err := mem.ReserveUnit(ctx, 1, "default"); err != domain.ErrStockNotFound {
		t.Errorf("expected ErrStockNotFound, got %v", err)
	}

	if err := mem.SetStock(ctx, 1, domain.Stock{"default": 2}); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	remaining, err := mem.ReserveUnit(ctx, 1, "default")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if remaining != 1 {
		t.Errorf("expected 1 remaining, got %d", remaining)
	}

	if _, err := mem.ReserveUnit(ctx, 1, "M"); err != domain.ErrOutOfStock {
		t.Errorf("expected ErrOutOfStock for absent variant, got %v", err)
	}
}

func TestMemoryReserveUnit_Concurrent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryAdapter()

	if err := mem.SetStock(ctx, 1, domain.Stock{"M": 5}); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := mem.ReserveUnit(ctx, 1, "M"); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 5 {
		t.Errorf("expected 5 successful reservations, got %d", successCount.Load())
	}
	stock, _, _ := mem.GetStock(ctx, 1)
	if stock.Available("M") != 0 {
		t.Errorf("expected 0 units left, got %d", stock.Available("M"))
	}
}

func TestMemoryWatchCart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mem := NewMemoryAdapter()

	ch, err := mem.WatchCart(ctx, "shopper-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// initial emission: empty cart
	select {
	case items := <-ch:
		if len(items) != 0 {
			t.Errorf("expected empty initial cart, got %d items", len(items))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial emission")
	}

	saved := []domain.CartItem{{Key: "1_default", ID: 1, Quantity: 2}}
	if err := mem.SaveCart(ctx, "shopper-1", saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case items := <-ch:
		if len(items) != 1 || items[0].Quantity != 2 {
			t.Errorf("unexpected emission: %+v", items)
		}
	case <-time.After(time.Second):
		t.Fatal("no emission after save")
	}

	cancel()
	select {
	case _, open := <-ch:
		if open {
			// drain the buffer; the channel must close soon after
			for range ch {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
