package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusEntry is the cached view of an order's lifecycle state.
type StatusEntry struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderCache keeps order status snapshots and create-order idempotency keys.
type OrderCache struct {
	rdb *redis.Client
}

func NewOrderCache(rdb *redis.Client) *OrderCache { return &OrderCache{rdb: rdb} }

// SetStatus stores the state a writer just committed, replacing any entry.
func (c *OrderCache) SetStatus(ctx context.Context, orderID, status string, at time.Time) error {
	b, err := json.Marshal(StatusEntry{Status: status, UpdatedAt: at.UTC()})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// FillStatus populates a missing entry from a store read. It never replaces
// an entry, so a writer that committed after the read keeps its value.
func (c *OrderCache) FillStatus(ctx context.Context, orderID, status string, at time.Time) error {
	b, err := json.Marshal(StatusEntry{Status: status, UpdatedAt: at.UTC()})
	if err != nil {
		return err
	}
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err()
}

// GetStatus returns ok=false on a cache miss.
func (c *OrderCache) GetStatus(ctx context.Context, orderID string) (StatusEntry, bool, error) {
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	var e StatusEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return StatusEntry{}, false, err
	}
	return e, true, nil
}

// idemPending marks a key whose order is still being placed.
const idemPending = "pending"

// ReserveOrder claims key for a new order. When the key is already taken it
// returns reserved=false and the order stored under it, or "" while the
// first request is still in flight.
func (c *OrderCache) ReserveOrder(ctx context.Context, userID, key string) (string, bool, error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	ok, err := c.rdb.SetNX(ctx, k, idemPending, TTLIdempotency).Result()
	if err != nil || ok {
		return "", ok, err
	}
	id, err := c.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || id == idemPending {
		return "", false, nil
	}
	return id, false, err
}

// RememberOrder stores key -> orderID once the order is committed.
func (c *OrderCache) RememberOrder(ctx context.Context, userID, key, orderID string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, TTLIdempotency).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ReleaseOrder frees a reservation whose order was never placed. A key that
// already points at an order is left alone.
func (c *OrderCache) ReleaseOrder(ctx context.Context, userID, key string) error {
	return releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf(KeyIdemOrderCreate, userID, key)}, idemPending).Err()
}
