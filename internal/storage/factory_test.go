package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/batchexplorer/tokencache/internal/config"
	"github.com/batchexplorer/tokencache/internal/encryption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromConfig_Backends(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{
			name: "memory",
			cfg:  config.StorageConfig{Type: "memory", Memory: config.MemoryStorageConfig{MaxSize: 10}},
		},
		{
			name: "file",
			cfg:  config.StorageConfig{Type: "file", File: config.FileStorageConfig{BaseURL: filepath.Join(dir, "files")}},
		},
		{
			name: "sql",
			cfg:  config.StorageConfig{Type: "sql", SQL: config.SQLConfig{DSN: filepath.Join(dir, "tokens.db")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			s, closeFn, err := NewFromConfig(ctx, tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, s)

			require.NoError(t, s.SetItem(ctx, "key", "value"))
			value, found, err := s.GetItem(ctx, "key")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "value", value)

			assert.NoError(t, closeFn())
		})
	}
}

func TestNewFromConfig_None(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := NewFromConfig(ctx, config.StorageConfig{Type: "none"})
	require.NoError(t, err)

	require.NoError(t, s.SetItem(ctx, "key", "value"))
	_, found, err := s.GetItem(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, closeFn())
}

func TestNewFromConfig_InvalidType(t *testing.T) {
	s, closeFn, err := NewFromConfig(context.Background(), config.StorageConfig{Type: "etcd"})

	assert.ErrorContains(t, err, "invalid storage type")
	assert.Nil(t, s)
	assert.Nil(t, closeFn)
}

func TestNewFromConfig_RedisRequiresAddress(t *testing.T) {
	_, _, err := NewFromConfig(context.Background(), config.StorageConfig{Type: "redis"})
	assert.ErrorContains(t, err, "redis address is required")
}

func TestNewFromConfig_Encrypted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keysetFile := filepath.Join(dir, "keyset.json")
	require.NoError(t, encryption.WriteKeysetFile(keysetFile))

	cfg := config.StorageConfig{
		Type: "file",
		File: config.FileStorageConfig{BaseURL: dir},
		Encryption: config.StorageEncryptionConfig{
			Enabled:                true,
			KeysetFile:             keysetFile,
			RefreshIntervalSeconds: 60,
		},
	}

	s, closeFn, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn()) }()

	require.NoError(t, s.SetItem(ctx, "current_access_token", "secret"))

	// the raw file holds only ciphertext
	raw, found, err := NewFile(dir).GetItem(ctx, "enc:current_access_token")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, raw, "secret")

	value, found, err := s.GetItem(ctx, "current_access_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "secret", value)
}

func TestNewFromConfig_EncryptionMissingKeyset(t *testing.T) {
	cfg := config.StorageConfig{
		Type: "memory",
		Encryption: config.StorageEncryptionConfig{
			Enabled:    true,
			KeysetFile: filepath.Join(t.TempDir(), "absent.json"),
		},
	}

	_, _, err := NewFromConfig(context.Background(), cfg)
	assert.ErrorContains(t, err, "initializing encryption")
}
