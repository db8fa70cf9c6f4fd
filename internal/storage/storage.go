// Package storage persists keyed JSON records for the account and session
// stores. Two implementations share one contract: an in-process map for
// tests and local development, and a crash-safe file backend for
// production.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Load for keys with no stored record.
	ErrNotFound = errors.New("storage: record not found")

	// ErrInvalidKey is returned for keys that could escape the backing
	// directory. Keys are restricted to [A-Za-z0-9_-], max 64 chars.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Backend reads and writes opaque records by key.
//
// Implementations guarantee that concurrent Store calls on the same key
// apply one at a time, that a Load never observes a half-written record,
// and that operations on different keys do not serialize against each
// other.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) (bool, error)
}
