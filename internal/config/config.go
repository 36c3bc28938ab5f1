package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Cache   CacheConfig
	Observe ObserveConfig
	Storage StorageConfig
}

// CacheConfig controls the behaviour of the token cache itself.
type CacheConfig struct {
	// WriteTimeoutSeconds bounds each background persistence write. Zero
	// disables the bound.
	WriteTimeoutSeconds int `env:"CACHE_WRITE_TIMEOUT_SECS, default=10"`
}

// StorageConfig specifies where the token cache is persisted.
type StorageConfig struct {
	// Type selects the backend: "none", "memory", "file" (default), "redis"
	// or "sql".
	Type string `env:"STORAGE_TYPE, default=file"`

	// Key is the storage key holding the serialized token cache.
	Key string `env:"STORAGE_KEY, default=current_access_token"`

	File   FileStorageConfig
	Memory MemoryStorageConfig
	Redis  RedisConfig
	SQL    SQLConfig

	// Encryption holds encryption-at-rest settings.
	Encryption StorageEncryptionConfig
}

type FileStorageConfig struct {
	// BaseURL is the directory (or afs URL) receiving one file per key. When
	// empty, the user configuration directory is used.
	BaseURL string `env:"STORAGE_FILE_BASE_URL"`
}

type MemoryStorageConfig struct {
	MaxSize int `env:"STORAGE_MEMORY_MAX_SIZE, default=1000"`
}

// RedisConfig specifies a remote key-value store.
type RedisConfig struct {
	// Address is the server address (host:port).
	Address string `env:"REDIS_ADDRESS"`

	Username string `env:"REDIS_USERNAME"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB, default=0"`

	// TLS enables TLS connections. Defaults to true so the secure option is
	// the default.
	TLS bool `env:"REDIS_TLS, default=true"`
}

type SQLConfig struct {
	// DSN is the sqlite data source name, usually a file path.
	DSN string `env:"SQL_DSN"`
}

// StorageEncryptionConfig holds settings for encrypting persisted tokens.
type StorageEncryptionConfig struct {
	Enabled bool `env:"STORAGE_ENCRYPTION_ENABLED, default=false"`

	// KeysetFile is the path to a cleartext JSON Tink keyset.
	KeysetFile string `env:"STORAGE_ENCRYPTION_KEYSET_FILE"`

	RefreshIntervalSeconds int `env:"STORAGE_ENCRYPTION_REFRESH_SECS, default=900"`
}

type ObserveConfig struct {
	SDKLogLevel               string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                   bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled            bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                      string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName               string `env:"OBSERVE_SERVICE_NAME, default=tokencache"`
	TraceBatchTimeoutSeconds  int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Storage.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid storage configuration: %w", err)
	}

	err = cfg.Observe.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid observe configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the storage configuration is usable.
func (c *StorageConfig) Validate() error {
	switch c.Type {
	case "none", "memory", "file", "redis", "sql":
	default:
		return fmt.Errorf("STORAGE_TYPE %q must be one of none, memory, file, redis, sql", c.Type)
	}

	if c.Key == "" {
		return fmt.Errorf("STORAGE_KEY must not be empty")
	}

	if c.Type == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("REDIS_ADDRESS required when STORAGE_TYPE=redis")
	}

	if c.Type == "sql" && c.SQL.DSN == "" {
		return fmt.Errorf("SQL_DSN required when STORAGE_TYPE=sql")
	}

	// Encryption needs somewhere to put ciphertext and a keyset to make it
	if c.Encryption.Enabled {
		if c.Type == "none" {
			return fmt.Errorf("storage encryption requires a persistent STORAGE_TYPE")
		}
		if c.Encryption.KeysetFile == "" {
			return fmt.Errorf("STORAGE_ENCRYPTION_KEYSET_FILE required when encryption enabled")
		}
	}

	return nil
}

func (c *ObserveConfig) Validate() error {
	if c.Type != "grpc" && c.Type != "stdout" {
		return fmt.Errorf("OBSERVE_TYPE %q must be either grpc or stdout", c.Type)
	}
	return nil
}
