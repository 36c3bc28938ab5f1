package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batchexplorer/tokencache/internal/config"
	"github.com/batchexplorer/tokencache/internal/encryption"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// CloseFunc releases resources held by a storage created from configuration.
type CloseFunc func() error

func noClose() error { return nil }

// NewFromConfig creates the storage described by cfg. Encryption is applied
// when enabled, and the result is always instrumented. The returned CloseFunc
// must be called once the storage is no longer used.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (Storage, CloseFunc, error) {
	backend, closeBackend, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.Encryption.Enabled {
		return NewInstrumented(backend, cfg.Type), closeBackend, nil
	}

	aead, err := encryption.NewRefreshableAEADFromFile(
		ctx,
		cfg.Encryption.KeysetFile,
		time.Duration(cfg.Encryption.RefreshIntervalSeconds)*time.Second,
	)
	if err != nil {
		_ = closeBackend()
		return nil, nil, fmt.Errorf("initializing encryption: %w", err)
	}

	log.Info().Str("keyset_file", cfg.Encryption.KeysetFile).Msg("storage encryption enabled")

	closeAll := func() error {
		return errors.Join(aead.Close(), closeBackend())
	}

	return NewInstrumented(NewEncrypted(backend, aead), cfg.Type), closeAll, nil
}

func newBackend(cfg config.StorageConfig) (Storage, CloseFunc, error) {
	switch cfg.Type {
	case "none":
		log.Info().Str("storage_type", "none").Msg("token cache persistence disabled")
		return Nop{}, noClose, nil

	case "memory":
		log.Info().
			Str("storage_type", "memory").
			Int("max_size", cfg.Memory.MaxSize).
			Msg("initializing in-memory storage")
		return NewMemory(cfg.Memory.MaxSize), noClose, nil

	case "file":
		baseURL := cfg.File.BaseURL
		if baseURL == "" {
			dir, err := DefaultFileDir()
			if err != nil {
				return nil, nil, err
			}
			baseURL = dir
		}

		log.Info().
			Str("storage_type", "file").
			Str("base_url", baseURL).
			Msg("initializing file storage")
		return NewFile(baseURL), noClose, nil

	case "redis":
		log.Info().
			Str("storage_type", "redis").
			Str("address", cfg.Redis.Address).
			Bool("tls", cfg.Redis.TLS).
			Msg("initializing redis storage")

		if cfg.Redis.Address == "" {
			return nil, nil, fmt.Errorf("redis address is required when storage type is redis")
		}

		opts := &redis.Options{
			Addr:     cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		if cfg.Redis.TLS {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		r := NewRedis(redis.NewClient(opts))
		return r, r.Close, nil

	case "sql":
		log.Info().
			Str("storage_type", "sql").
			Str("dsn", cfg.SQL.DSN).
			Msg("initializing sql storage")

		db, err := OpenSQLite(cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}

		s, err := NewSQL(db)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("invalid storage type %q: must be one of none, memory, file, redis, sql", cfg.Type)
	}
}

// DefaultFileDir is the directory used for file storage when no base URL is
// configured.
func DefaultFileDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "batch-explorer", "storage"), nil
}
