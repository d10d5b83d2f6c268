package port

import (
	"context"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// StockStore is the authoritative per-product stock ledger. ReserveUnit
// is the only operation the no-oversell guarantee depends on; it must be
// a single atomic read-check-write at the store.
type StockStore interface {
	// GetStock returns the stock record, ok=false when none exists.
	GetStock(ctx context.Context, productID int) (domain.Stock, bool, error)

	// SetStock creates or replaces the stock record.
	SetStock(ctx context.Context, productID int, stock domain.Stock) error

	// ReserveUnit atomically decrements the variant count by 1 only if the
	// record exists and the count is at least 1, and returns the confirmed
	// remaining count. Fails with domain.ErrStockNotFound or
	// domain.ErrOutOfStock without mutating anything.
	ReserveUnit(ctx context.Context, productID int, variant string) (int, error)

	// ReleaseUnit atomically increments the variant count by 1 and returns
	// the confirmed count. Fails with domain.ErrStockNotFound when the
	// record does not exist.
	ReleaseUnit(ctx context.Context, productID int, variant string) (int, error)
}
