package domain

import "fmt"

// CartItem is one line of a shopper's cart. Key identifies the line
// within the cart: product id plus variant key.
//
// The json field names are the persisted cart record shape; the same
// shape is served to clients.
type CartItem struct {
	Key        string  `json:"key"`
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Price      float64 `json:"price"`
	Size       string  `json:"size"`
	Quantity   int     `json:"quantity"`
	CategoryID int     `json:"categoryId"`
	Image      string  `json:"image"`
}

// ItemKey builds the composite line-item key for a product and variant.
func ItemKey(productID int, size string) string {
	return fmt.Sprintf("%d_%s", productID, size)
}

// FindItem returns the index of the line item with the given key, or -1.
func FindItem(items []CartItem, key string) int {
	for i, it := range items {
		if it.Key == key {
			return i
		}
	}
	return -1
}

// CloneItems returns an independent copy of a line-item set.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}
