// Package kv implements the secondary key-value store backing the
// sandbox lease/heartbeat contract (§3, §4.2): SET key value PX ttl and
// DEL key, with expiry checked on read.
package kv

import (
	"context"
	"time"
)

// Store is the minimal KV contract the lease manager needs: set a
// value with a TTL, read it back (nil if absent or expired), and
// delete it.
type Store interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
