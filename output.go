package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/batchexplorer/tokencache/internal/token"
	"github.com/batchexplorer/tokencache/internal/tokencache"
	"github.com/golang-jwt/jwt/v4"
	"gopkg.in/yaml.v3"
)

// listing describes a cached token without exposing its secrets.
type listing struct {
	TenantID  string    `json:"tenant_id" yaml:"tenant_id"`
	Resource  string    `json:"resource" yaml:"resource"`
	TokenType string    `json:"token_type" yaml:"token_type"`
	ExpiresOn time.Time `json:"expires_on" yaml:"expires_on"`
	Expired   bool      `json:"expired" yaml:"expired"`
}

func newListings(entries []tokencache.Entry[token.AccessToken], now time.Time) []listing {
	listings := make([]listing, 0, len(entries))
	for _, e := range entries {
		listings = append(listings, listing{
			TenantID:  e.TenantID,
			Resource:  e.Resource,
			TokenType: e.Token.TokenType,
			ExpiresOn: e.Token.ExpiresOn,
			Expired:   e.Token.HasExpiredAt(now),
		})
	}
	return listings
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeTable(w io.Writer, listings []listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "TENANT\tRESOURCE\tTYPE\tEXPIRES ON\tSTATUS")
	for _, l := range listings {
		status := "valid"
		if l.Expired {
			status = "expired"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			l.TenantID,
			l.Resource,
			l.TokenType,
			l.ExpiresOn.Format(time.RFC3339),
			status,
		)
	}

	return tw.Flush()
}

type claimsView struct {
	TenantID  string     `json:"tenant_id,omitempty"`
	ObjectID  string     `json:"object_id,omitempty"`
	User      string     `json:"user,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	Audience  []string   `json:"audience,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newClaimsView(c token.Claims) claimsView {
	return claimsView{
		TenantID:  c.TenantID,
		ObjectID:  c.ObjectID,
		User:      c.User(),
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		IssuedAt:  numericTime(c.IssuedAt),
		ExpiresAt: numericTime(c.ExpiresAt),
	}
}

func numericTime(d *jwt.NumericDate) *time.Time {
	if d == nil {
		return nil
	}
	t := d.UTC()
	return &t
}
