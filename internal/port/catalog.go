package port

import (
	"context"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

// Catalog is the external product catalog collaborator. Pages start at 1.
type Catalog interface {
	// ProductByID resolves canonical product data for a product id.
	// Fails with domain.ErrProductNotFound for unknown ids.
	ProductByID(ctx context.Context, id int) (*domain.Product, error)

	// Products lists one page of the catalog.
	Products(ctx context.Context, page int) ([]domain.Product, error)

	// ProductsByCategory lists one page of a category.
	ProductsByCategory(ctx context.Context, categoryID, page int) ([]domain.Product, error)

	// Search lists one page of products matching a title query.
	Search(ctx context.Context, query string, page int) ([]domain.Product, error)

	// Categories lists all catalog categories.
	Categories(ctx context.Context) ([]domain.Category, error)
}
