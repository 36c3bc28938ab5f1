// Package storage provides the key-value persistence backends used to keep
// the token cache across process restarts.
package storage

import (
	"context"
	"errors"
)

// ErrCorrupt marks a stored value that exists but cannot be read back, for
// example because it fails decryption. Callers treat it like unparseable
// data rather than as an outage.
var ErrCorrupt = errors.New("stored value is corrupt")

// Storage is a scoped key-value persistence capability. All operations may
// block on I/O and honour context cancellation where the backend allows.
type Storage interface {
	// GetItem returns the value stored under key, and whether it was found.
	// A missing key is not an error.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any existing value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Nop is the storage used when persistence is not configured: nothing is
// ever found and writes are discarded.
type Nop struct{}

func (Nop) GetItem(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (Nop) SetItem(context.Context, string, string) error {
	return nil
}

func (Nop) RemoveItem(context.Context, string) error {
	return nil
}
