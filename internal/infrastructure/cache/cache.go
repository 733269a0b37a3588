// Package cache provides the snapshot store for latest-analysis lookups.
// The read path for suggestions hits this store instead of the database;
// Redis backs it in deployment, with an in-memory fallback for development
// and tests.
package cache

import (
	"context"
	"time"
)

// Store is a string key-value store with per-key expiration.
type Store interface {
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
