package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	cartKeyPrefix     = "cart:"
	cartChannelPrefix = "cart.updates."
)

// reserveUnitScript decrements a variant field by 1 only when the record
// exists and at least one unit is available. Returns the remaining count,
// -1 for insufficient stock, -2 for a missing record. Scripts run
// atomically, so the read-check-write cannot interleave with a
// concurrent reservation.
var reserveUnitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -2
end

local avail = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if avail < 1 then
	return -1
end

return redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
`)

// releaseUnitScript increments a variant field by 1, refusing to create a
// record that was never seeded. Returns the new count or -2.
var releaseUnitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -2
end

return redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
`)

// RedisAdapter implements port.StockStore and port.CartStore on Redis.
// Stock lives as one hash per product (field per variant, Lua scripts for
// the atomic mutations); the cart is a JSON document per shopper with a
// Pub/Sub channel providing the live subscription.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func stockKey(productID int) string {
	return stockKeyPrefix + strconv.Itoa(productID)
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID int) (domain.Stock, bool, error) {
	fields, err := r.client.HGetAll(ctx, stockKey(productID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("read stock hash: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	stock := make(domain.Stock, len(fields))
	for variant, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false, fmt.Errorf("stock field %q: %w", variant, err)
		}
		stock[variant] = n
	}
	return stock, true, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID int, stock domain.Stock) error {
	key := stockKey(productID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for variant, count := range stock {
			pipe.HSet(ctx, key, variant, count)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write stock hash: %w", err)
	}
	return nil
}

func (r *RedisAdapter) ReserveUnit(ctx context.Context, productID int, variant string) (int, error) {
	res, err := reserveUnitScript.Run(ctx, r.client, []string{stockKey(productID)}, variant).Int()
	if err != nil {
		return 0, fmt.Errorf("reserve script: %w", err)
	}
	switch res {
	case -2:
		return 0, domain.ErrStockNotFound
	case -1:
		return 0, domain.ErrOutOfStock
	default:
		return res, nil
	}
}

func (r *RedisAdapter) ReleaseUnit(ctx context.Context, productID int, variant string) (int, error) {
	res, err := releaseUnitScript.Run(ctx, r.client, []string{stockKey(productID)}, variant).Int()
	if err != nil {
		return 0, fmt.Errorf("release script: %w", err)
	}
	if res == -2 {
		return 0, domain.ErrStockNotFound
	}
	return res, nil
}

type redisCartDoc struct {
	Items []domain.CartItem `json:"items"`
}

func (r *RedisAdapter) GetCart(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	raw, err := r.client.Get(ctx, cartKeyPrefix+shopperID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart doc: %w", err)
	}
	var doc redisCartDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode cart doc: %w", err)
	}
	return doc.Items, nil
}

// SaveCart rewrites only the items field of the cart document inside an
// optimistic WATCH transaction, so sibling fields written by other
// services survive and concurrent saves do not lose updates. Subscribers
// are notified over Pub/Sub afterwards.
func (r *RedisAdapter) SaveCart(ctx context.Context, shopperID string, items []domain.CartItem) error {
	key := cartKeyPrefix + shopperID
	if items == nil {
		items = []domain.CartItem{}
	}

	var payload []byte
	save := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return err
		}

		doc := map[string]json.RawMessage{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("decode cart doc: %w", err)
			}
		}
		encoded, err := json.Marshal(items)
		if err != nil {
			return err
		}
		doc["items"] = encoded

		payload, err = json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		err = r.client.Watch(ctx, save, key)
		if err != redis.TxFailedErr {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("save cart doc: %w", err)
	}

	if err := r.client.Publish(ctx, cartChannelPrefix+shopperID, payload).Err(); err != nil {
		return fmt.Errorf("publish cart update: %w", err)
	}
	return nil
}

func (r *RedisAdapter) WatchCart(ctx context.Context, shopperID string) (<-chan []domain.CartItem, error) {
	sub := r.client.Subscribe(ctx, cartChannelPrefix+shopperID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe cart channel: %w", err)
	}

	// The subscription is live before this read, so a write landing in
	// between is still delivered. A failed read fails the watch; the
	// contract is that the first emission is the current state.
	initial, err := r.GetCart(ctx, shopperID)
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("initial cart snapshot: %w", err)
	}

	ch := make(chan []domain.CartItem, 1)
	go func() {
		defer close(ch)
		defer sub.Close()

		select {
		case ch <- initial:
		case <-ctx.Done():
			return
		}

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var doc redisCartDoc
				if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
					continue
				}
				select {
				case ch <- doc.Items:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
