package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Claims are the identity claims carried by an access token issued as a
// JWT. They are read without signature verification and are informational
// only: nothing in the cache relies on them.
type Claims struct {
	TenantID   string `json:"tid,omitempty"`
	ObjectID   string `json:"oid,omitempty"`
	UPN        string `json:"upn,omitempty"`
	UniqueName string `json:"unique_name,omitempty"`

	jwt.RegisteredClaims
}

// User returns the best available user name from the claims.
func (c Claims) User() string {
	if c.UPN != "" {
		return c.UPN
	}
	return c.UniqueName
}

// Claims decodes the access token as an unverified JWT.
func (t AccessToken) Claims() (Claims, error) {
	var claims Claims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(t.AccessToken, &claims); err != nil {
		return Claims{}, fmt.Errorf("access token is not a readable JWT: %w", err)
	}

	return claims, nil
}
