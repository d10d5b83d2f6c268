package port

import (
	"context"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// CartStore persists one cart record per shopper and exposes a live
// subscription to it.
type CartStore interface {
	// GetCart returns the shopper's current line-item set, nil when the
	// cart record does not exist.
	GetCart(ctx context.Context, shopperID string) ([]domain.CartItem, error)

	// SaveCart upserts the full line-item set as the shopper's cart with
	// merge semantics: fields of the cart record other than the items set
	// are left intact.
	SaveCart(ctx context.Context, shopperID string, items []domain.CartItem) error

	// WatchCart returns a channel that emits the shopper's line-item set
	// on every write to the cart record, by this client or another, in
	// write order. The channel is closed when ctx is cancelled or the
	// underlying stream ends.
	WatchCart(ctx context.Context, shopperID string) (<-chan []domain.CartItem, error)
}
