package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tink-crypto/tink-go/v2/tink"
)

// valuePrefix is the marker prepended to encrypted values to distinguish
// them from plaintext entries.
const valuePrefix = "tc-enc:"

// storageKeyPrefix is prepended to keys when encryption is active, keeping
// encrypted and plaintext entries in separate namespaces.
const storageKeyPrefix = "enc:"

// Encrypted wraps a Storage and encrypts values at rest using a Tink AEAD.
// Values are encrypted with the storage key as associated data to prevent
// ciphertext being swapped between keys, then base64-encoded and prefixed
// with "tc-enc:".
type Encrypted struct {
	wrapped Storage
	aead    tink.AEAD
}

// NewEncrypted creates an encrypting decorator over wrapped.
func NewEncrypted(wrapped Storage, aead tink.AEAD) *Encrypted {
	return &Encrypted{
		wrapped: wrapped,
		aead:    aead,
	}
}

func (e *Encrypted) storageKey(key string) string {
	return storageKeyPrefix + key
}

// GetItem decrypts the stored value. A value that cannot be decrypted is
// reported as ErrCorrupt and removed on a best-effort basis.
func (e *Encrypted) GetItem(ctx context.Context, key string) (string, bool, error) {
	storageKey := e.storageKey(key)

	value, found, err := e.wrapped.GetItem(ctx, storageKey)
	if err != nil || !found {
		return "", found, err
	}

	plaintext, err := e.decrypt(value, key)
	if err != nil {
		_ = e.wrapped.RemoveItem(ctx, storageKey)

		return "", false, fmt.Errorf("%w: key %q: %w", ErrCorrupt, key, err)
	}

	return string(plaintext), true, nil
}

func (e *Encrypted) SetItem(ctx context.Context, key, value string) error {
	ciphertext, err := e.aead.Encrypt([]byte(value), []byte(key))
	if err != nil {
		return fmt.Errorf("encrypting value: %w", err)
	}

	encoded := valuePrefix + base64.StdEncoding.EncodeToString(ciphertext)

	return e.wrapped.SetItem(ctx, e.storageKey(key), encoded)
}

func (e *Encrypted) RemoveItem(ctx context.Context, key string) error {
	return e.wrapped.RemoveItem(ctx, e.storageKey(key))
}

func (e *Encrypted) decrypt(value, key string) ([]byte, error) {
	if !strings.HasPrefix(value, valuePrefix) {
		return nil, fmt.Errorf("missing %q prefix: value may be unencrypted or corrupted", valuePrefix)
	}

	encoded := strings.TrimPrefix(value, valuePrefix)
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	plaintext, err := e.aead.Decrypt(decoded, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
