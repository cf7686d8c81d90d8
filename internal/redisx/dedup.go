package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids for one consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

func (d *Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.service, id) }

func (d *Dedup) Seen(ctx context.Context, id string) (bool, error) {
	return Exists(ctx, d.rdb, d.key(id))
}

// Mark records id as processed. Call it only after the work succeeded so a
// failed message is retried on redelivery.
func (d *Dedup) Mark(ctx context.Context, id string) error {
	return d.rdb.Set(ctx, d.key(id), "1", TTLDedup).Err()
}
