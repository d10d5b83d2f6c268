package domain

import "errors"

var (
	// ErrStockNotFound means no stock record exists for the product.
	ErrStockNotFound = errors.New("no stock record")

	// ErrOutOfStock means the variant has no units left to reserve.
	ErrOutOfStock = errors.New("out of stock")

	// ErrProductNotFound means the catalog has no product for the id.
	ErrProductNotFound = errors.New("product not found")
)
