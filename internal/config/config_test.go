package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, "current_access_token", cfg.Storage.Key)
	assert.Equal(t, 1000, cfg.Storage.Memory.MaxSize)
	assert.True(t, cfg.Storage.Redis.TLS)
	assert.False(t, cfg.Storage.Encryption.Enabled)
	assert.Equal(t, 900, cfg.Storage.Encryption.RefreshIntervalSeconds)
	assert.Equal(t, 10, cfg.Cache.WriteTimeoutSeconds)
	assert.False(t, cfg.Observe.Enabled)
	assert.Equal(t, "tokencache", cfg.Observe.ServiceName)
}

func TestLoad_Redis(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("REDIS_TLS", "false")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	expected := RedisConfig{
		Address: "localhost:6379",
		DB:      3,
		TLS:     false,
	}
	assert.Equal(t, expected, cfg.Storage.Redis)
}

func TestLoad_CustomKey(t *testing.T) {
	cfg, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORAGE_TYPE": "memory",
		"STORAGE_KEY":  "tokens/v2",
	}))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "tokens/v2", cfg.Storage.Key)
}

func TestLoad_InvalidStorage(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"STORAGE_TYPE": "sql",
	}))
	assert.ErrorContains(t, err, "SQL_DSN required")
}

func TestLoad_InvalidObserveType(t *testing.T) {
	_, err := load(context.Background(), envconfig.MapLookuper(map[string]string{
		"OBSERVE_TYPE": "carrier-pigeon",
	}))
	assert.ErrorContains(t, err, "OBSERVE_TYPE")
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StorageConfig
		wantErr string
	}{
		{
			name:   "file",
			config: StorageConfig{Type: "file", Key: "k"},
		},
		{
			name:   "none",
			config: StorageConfig{Type: "none", Key: "k"},
		},
		{
			name:    "unknown type",
			config:  StorageConfig{Type: "etcd", Key: "k"},
			wantErr: "must be one of",
		},
		{
			name:    "empty key",
			config:  StorageConfig{Type: "memory"},
			wantErr: "STORAGE_KEY",
		},
		{
			name:    "redis without address",
			config:  StorageConfig{Type: "redis", Key: "k"},
			wantErr: "REDIS_ADDRESS",
		},
		{
			name: "encryption without storage",
			config: StorageConfig{
				Type:       "none",
				Key:        "k",
				Encryption: StorageEncryptionConfig{Enabled: true, KeysetFile: "keyset.json"},
			},
			wantErr: "persistent STORAGE_TYPE",
		},
		{
			name: "encryption without keyset",
			config: StorageConfig{
				Type:       "file",
				Key:        "k",
				Encryption: StorageEncryptionConfig{Enabled: true},
			},
			wantErr: "STORAGE_ENCRYPTION_KEYSET_FILE",
		},
		{
			name: "encryption with keyset",
			config: StorageConfig{
				Type:       "sql",
				Key:        "k",
				SQL:        SQLConfig{DSN: "tokens.db"},
				Encryption: StorageEncryptionConfig{Enabled: true, KeysetFile: "keyset.json"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
