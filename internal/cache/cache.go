// Package cache memoizes upstream API responses behind a key/value store with
// TTL. Keys are built explicitly from an operation name and its normalized
// arguments.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("key not found in cache")
	ErrClosed   = errors.New("cache is closed")
)

// DefaultTTL applies when Set is called with a zero ttl.
const DefaultTTL = time.Hour

// Cache is the key/value store used for memoization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear removes every entry written through this cache.
	Clear(ctx context.Context) error
	Close() error
}

// Key returns "<operation>:<sha256 of the JSON encoding of args>". Struct
// field order is fixed and map keys are sorted by encoding/json, so equal
// argument values always produce the same key.
func Key(operation string, args any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", operation, err)
	}
	sum := sha256.Sum256(raw)
	return operation + ":" + hex.EncodeToString(sum[:]), nil
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, error) {
	var v T
	raw, err := c.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}
