// This command is only used for local testing: it prints a raw token record,
// suitable for `tokencache store`, whose access token is an unsigned JWT.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/batchexplorer/tokencache/internal/token"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	TenantID        string `env:"UTIL_TENANT_ID, default=00000000-0000-0000-0000-000000000001"`
	Audience        string `env:"UTIL_AUDIENCE, default=https://batch.core.windows.net/"`
	Subject         string `env:"UTIL_SUBJECT, default=test-subject"`
	UPN             string `env:"UTIL_UPN, default=someone@example.com"`
	Issuer          string `env:"UTIL_ISSUER, default=https://local.testing"`
	LifetimeSeconds int    `env:"UTIL_LIFETIME_SECS, default=3600"`
}

func main() {
	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	if err := writeRecord(os.Stdout, cfg, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "error creating token: %v\n", err)
		os.Exit(1)
	}
}

func writeRecord(w io.Writer, cfg Config, now time.Time) error {
	rec, err := newRecord(cfg, now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func newRecord(cfg Config, now time.Time) (token.AccessToken, error) {
	if cfg.LifetimeSeconds <= 0 {
		return token.AccessToken{}, fmt.Errorf("lifetime must be positive, got %d", cfg.LifetimeSeconds)
	}

	lifetime := time.Duration(cfg.LifetimeSeconds) * time.Second
	now = now.UTC().Truncate(time.Second)
	expiresOn := now.Add(lifetime)

	claims := token.Claims{
		TenantID: cfg.TenantID,
		ObjectID: uuid.NewString(),
		UPN:      cfg.UPN,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   cfg.Subject,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresOn),
			ID:        uuid.NewString(),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		return token.AccessToken{}, fmt.Errorf("signing: %w", err)
	}

	return token.AccessToken{
		AccessToken:  access,
		RefreshToken: uuid.NewString(),
		TokenType:    "Bearer",
		ExpiresIn:    int64(lifetime.Seconds()),
		ExpiresOn:    expiresOn,
		ExtExpiresIn: int64(lifetime.Seconds()),
		NotBefore:    now.Unix(),
	}, nil
}
