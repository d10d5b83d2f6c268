package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

const (
	cartsCollection  = "carts"
	stocksCollection = "stocks"
)

// FirestoreAdapter implements port.StockStore and port.CartStore on a
// Firestore project.
//
// Collection design:
//   - stocks/{productId}: flat map variantKey -> count
//   - carts/{shopperId}:  items array (persisted cart record shape)
//
// ReserveUnit runs inside a Firestore transaction: the read, the
// availability check and the write commit as one unit, and the
// transaction layer retries or aborts when a concurrent writer touched
// the record in between. That is the whole no-oversell guarantee.
type FirestoreAdapter struct {
	client *firestore.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{client: client}
}

// NewFirestoreClient builds a Firestore client. With an empty
// credentialsFile, Application Default Credentials are used.
func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var (
		client *firestore.Client
		err    error
	)
	if credentialsFile != "" {
		client, err = firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

func (f *FirestoreAdapter) stockRef(productID int) *firestore.DocumentRef {
	return f.client.Collection(stocksCollection).Doc(strconv.Itoa(productID))
}

func (f *FirestoreAdapter) cartRef(shopperID string) *firestore.DocumentRef {
	return f.client.Collection(cartsCollection).Doc(shopperID)
}

func (f *FirestoreAdapter) GetStock(ctx context.Context, productID int) (domain.Stock, bool, error) {
	snap, err := f.stockRef(productID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get stock doc: %w", err)
	}
	return stockFromSnapshot(snap), true, nil
}

func (f *FirestoreAdapter) SetStock(ctx context.Context, productID int, stock domain.Stock) error {
	doc := make(map[string]interface{}, len(stock))
	for variant, count := range stock {
		doc[variant] = count
	}
	if _, err := f.stockRef(productID).Set(ctx, doc); err != nil {
		return fmt.Errorf("set stock doc: %w", err)
	}
	return nil
}

func (f *FirestoreAdapter) ReserveUnit(ctx context.Context, productID int, variant string) (int, error) {
	ref := f.stockRef(productID)
	var remaining int

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrStockNotFound
			}
			return err
		}
		avail := stockFromSnapshot(snap).Available(variant)
		if avail < 1 {
			return domain.ErrOutOfStock
		}
		remaining = avail - 1
		return tx.Update(ref, []firestore.Update{{Path: variant, Value: remaining}})
	})
	if err != nil {
		if errors.Is(err, domain.ErrStockNotFound) || errors.Is(err, domain.ErrOutOfStock) {
			return 0, err
		}
		return 0, fmt.Errorf("reserve transaction: %w", err)
	}
	return remaining, nil
}

func (f *FirestoreAdapter) ReleaseUnit(ctx context.Context, productID int, variant string) (int, error) {
	ref := f.stockRef(productID)
	var count int

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrStockNotFound
			}
			return err
		}
		count = stockFromSnapshot(snap).Available(variant) + 1
		return tx.Update(ref, []firestore.Update{{Path: variant, Value: count}})
	})
	if err != nil {
		if errors.Is(err, domain.ErrStockNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("release transaction: %w", err)
	}
	return count, nil
}

func (f *FirestoreAdapter) GetCart(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	snap, err := f.cartRef(shopperID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart doc: %w", err)
	}
	return cartItemsFromSnapshot(snap)
}

// SaveCart merge-sets the items field only, so fields written by other
// services on the same cart record survive.
func (f *FirestoreAdapter) SaveCart(ctx context.Context, shopperID string, items []domain.CartItem) error {
	docs := make([]cartItemDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, cartItemDocFromDomain(it))
	}
	_, err := f.cartRef(shopperID).Set(ctx, map[string]interface{}{"items": docs}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("save cart doc: %w", err)
	}
	return nil
}

func (f *FirestoreAdapter) WatchCart(ctx context.Context, shopperID string) (<-chan []domain.CartItem, error) {
	ch := make(chan []domain.CartItem, 1)
	iter := f.cartRef(shopperID).Snapshots(ctx)

	go func() {
		defer close(ch)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				return
			}
			var items []domain.CartItem
			if snap.Exists() {
				items, err = cartItemsFromSnapshot(snap)
				if err != nil {
					continue
				}
			}
			select {
			case ch <- items:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// -----------------------------------------
// Firestore DTOs
// -----------------------------------------

type cartItemDoc struct {
	Key        string  `firestore:"key"`
	ID         int     `firestore:"id"`
	Title      string  `firestore:"title"`
	Price      float64 `firestore:"price"`
	Size       string  `firestore:"size"`
	Quantity   int     `firestore:"quantity"`
	CategoryID int     `firestore:"categoryId"`
	Image      string  `firestore:"image"`
}

func cartItemDocFromDomain(it domain.CartItem) cartItemDoc {
	return cartItemDoc{
		Key:        it.Key,
		ID:         it.ID,
		Title:      it.Title,
		Price:      it.Price,
		Size:       it.Size,
		Quantity:   it.Quantity,
		CategoryID: it.CategoryID,
		Image:      it.Image,
	}
}

func (d cartItemDoc) toDomain() domain.CartItem {
	return domain.CartItem{
		Key:        d.Key,
		ID:         d.ID,
		Title:      d.Title,
		Price:      d.Price,
		Size:       d.Size,
		Quantity:   d.Quantity,
		CategoryID: d.CategoryID,
		Image:      d.Image,
	}
}

func cartItemsFromSnapshot(snap *firestore.DocumentSnapshot) ([]domain.CartItem, error) {
	var doc struct {
		Items []cartItemDoc `firestore:"items"`
	}
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode cart doc: %w", err)
	}
	items := make([]domain.CartItem, 0, len(doc.Items))
	for _, d := range doc.Items {
		if d.Quantity <= 0 {
			continue
		}
		items = append(items, d.toDomain())
	}
	return items, nil
}

// stockFromSnapshot parses the flat variant->count map. Counts come back
// as int64 from Firestore; tolerate float64 for records written by other
// SDKs.
func stockFromSnapshot(snap *firestore.DocumentSnapshot) domain.Stock {
	raw := snap.Data()
	stock := make(domain.Stock, len(raw))
	for variant, v := range raw {
		switch n := v.(type) {
		case int64:
			stock[variant] = int(n)
		case float64:
			stock[variant] = int(n)
		}
	}
	return stock
}
