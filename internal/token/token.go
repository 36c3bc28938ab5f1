package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AccessToken is a bearer credential issued for a single tenant and resource.
// Values are never modified after construction: a refreshed credential is a
// new AccessToken replacing the old one.
type AccessToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	ExpiresOn    time.Time `json:"expires_on"`
	ExtExpiresIn int64     `json:"ext_expires_in,omitempty"`
	NotBefore    int64     `json:"not_before,omitempty"`
}

// required holds the fields that must be present for a raw record to be
// usable. It is decoded separately from AccessToken so that validation does
// not depend on the optional, loosely-typed fields.
type required struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresOn    time.Time `json:"expires_on"`
}

// IsValidToken reports whether raw is an object carrying an access token, a
// refresh token, a token type and a parseable expiry.
func IsValidToken(raw json.RawMessage) bool {
	var r required
	if err := json.Unmarshal(raw, &r); err != nil {
		return false
	}

	return r.AccessToken != "" &&
		r.RefreshToken != "" &&
		r.TokenType != "" &&
		!r.ExpiresOn.IsZero()
}

// New constructs an AccessToken from its raw serialized record.
func New(raw json.RawMessage) (AccessToken, error) {
	if !IsValidToken(raw) {
		return AccessToken{}, errors.New("token record is missing required fields")
	}

	var t AccessToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return AccessToken{}, fmt.Errorf("decoding token record: %w", err)
	}

	return t, nil
}

// HasExpired reports whether the token is past its expiry.
func (t AccessToken) HasExpired() bool {
	return t.HasExpiredAt(time.Now())
}

// HasExpiredAt reports whether the token is expired at the given instant.
func (t AccessToken) HasExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresOn)
}

// ExpiresWithin reports whether the token expires in less than d from now.
func (t AccessToken) ExpiresWithin(d time.Duration) bool {
	return time.Until(t.ExpiresOn) < d
}

// Model adapts the AccessToken constructor and validator to the model
// contract consumed by the token cache.
type Model struct{}

func (Model) IsValid(raw json.RawMessage) bool {
	return IsValidToken(raw)
}

func (Model) Decode(raw json.RawMessage) (AccessToken, error) {
	return New(raw)
}
