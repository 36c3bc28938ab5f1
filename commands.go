package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/batchexplorer/tokencache/internal/config"
	"github.com/batchexplorer/tokencache/internal/encryption"
	"github.com/batchexplorer/tokencache/internal/observe"
	"github.com/batchexplorer/tokencache/internal/storage"
	"github.com/batchexplorer/tokencache/internal/token"
	"github.com/batchexplorer/tokencache/internal/tokencache"
	"github.com/rs/zerolog/log"
)

// maxRecordBytes limits the size of a token record read by store.
const maxRecordBytes = 64 << 10

var errNotFound = errors.New("token not found")

type Options struct {
	List    listCommand    `command:"list" description:"List cached tokens"`
	Get     getCommand     `command:"get" description:"Print the raw record of a cached token"`
	Store   storeCommand   `command:"store" description:"Validate a raw token record and add it to the cache"`
	Remove  removeCommand  `command:"remove" description:"Remove a cached token and persist the change"`
	Clear   clearCommand   `command:"clear" description:"Remove every cached token"`
	Inspect inspectCommand `command:"inspect" description:"Print the unverified claims of a cached token"`
	Keygen  keygenCommand  `command:"keygen" description:"Write a new keyset file for storage encryption"`
}

func newOptions(a *app) *Options {
	o := &Options{}
	o.List.app = a
	o.Get.app = a
	o.Store.app = a
	o.Remove.app = a
	o.Clear.app = a
	o.Inspect.app = a
	return o
}

type cacheKey struct {
	TenantID string `positional-arg-name:"TENANT" required:"yes"`
	Resource string `positional-arg-name:"RESOURCE" required:"yes"`
}

func (k cacheKey) notFound() error {
	return fmt.Errorf("%w: tenant %q, resource %q", errNotFound, k.TenantID, k.Resource)
}

// openCache builds the configured storage and loads the cache from it.
// Cleanup is registered with the app's shutdown hooks.
func (a *app) openCache() (*tokencache.Cache[token.AccessToken], error) {
	cfg, err := config.Load(a.ctx)
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}

	shutdownTelemetry, err := observe.Configure(a.ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	a.hooks.AddContext("telemetry", shutdownTelemetry)

	store, closeStorage, err := storage.NewFromConfig(a.ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage configuration failed: %w", err)
	}
	a.hooks.Add("storage", closeStorage)

	cache := tokencache.New[token.AccessToken](token.Model{},
		tokencache.WithStorage(store),
		tokencache.WithKey(cfg.Storage.Key),
		tokencache.WithWriteTimeout(time.Duration(cfg.Cache.WriteTimeoutSeconds)*time.Second),
	)
	a.hooks.AddContext("token cache", cache.Flush)

	if err := cache.Init(a.ctx); err != nil {
		return nil, fmt.Errorf("token cache load failed: %w", err)
	}

	return cache, nil
}

type listCommand struct {
	Output string `short:"o" long:"output" description:"output format" choice:"table" choice:"json" choice:"yaml" default:"table"`

	app *app
}

func (c *listCommand) Execute([]string) error {
	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	listings := newListings(cache.Entries(), time.Now())

	switch c.Output {
	case "json":
		return writeJSON(c.app.out, listings)
	case "yaml":
		return writeYAML(c.app.out, listings)
	default:
		return writeTable(c.app.out, listings)
	}
}

type getCommand struct {
	AccessTokenOnly bool     `short:"a" long:"access-token" description:"print only the access token"`
	Args            cacheKey `positional-args:"yes" required:"yes"`

	app *app
}

func (c *getCommand) Execute([]string) error {
	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	tok, ok := cache.GetToken(c.Args.TenantID, c.Args.Resource)
	if !ok {
		return c.Args.notFound()
	}

	if c.AccessTokenOnly {
		_, err := fmt.Fprintln(c.app.out, tok.AccessToken)
		return err
	}

	return writeJSON(c.app.out, tok)
}

type storeCommand struct {
	File string   `short:"f" long:"file" description:"read the token record from a file instead of stdin"`
	Args cacheKey `positional-args:"yes" required:"yes"`

	app *app
}

func (c *storeCommand) Execute([]string) error {
	raw, err := c.readRecord()
	if err != nil {
		return err
	}

	tok, err := token.New(raw)
	if err != nil {
		return fmt.Errorf("invalid token record: %w", err)
	}
	if tok.HasExpired() {
		return fmt.Errorf("invalid token record: expired at %s", tok.ExpiresOn.Format(time.RFC3339))
	}

	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	// background write failures are only logged, so save explicitly to
	// report them
	cache.StoreToken(c.Args.TenantID, c.Args.Resource, tok)
	if err := cache.Save(c.app.ctx); err != nil {
		return fmt.Errorf("saving token cache: %w", err)
	}

	log.Info().
		Str("tenant_id", c.Args.TenantID).
		Str("resource", c.Args.Resource).
		Time("expires_on", tok.ExpiresOn).
		Msg("token stored")

	return nil
}

func (c *storeCommand) readRecord() ([]byte, error) {
	var r io.Reader = c.app.in
	if c.File != "" {
		f, err := os.Open(c.File)
		if err != nil {
			return nil, fmt.Errorf("opening token record: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxRecordBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading token record: %w", err)
	}
	if len(data) > maxRecordBytes {
		return nil, fmt.Errorf("token record exceeds %d bytes", maxRecordBytes)
	}

	return data, nil
}

type removeCommand struct {
	Args cacheKey `positional-args:"yes" required:"yes"`

	app *app
}

func (c *removeCommand) Execute([]string) error {
	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	if !cache.HasToken(c.Args.TenantID, c.Args.Resource) {
		return c.Args.notFound()
	}

	// removal is only persisted by an explicit save
	cache.RemoveToken(c.Args.TenantID, c.Args.Resource)
	if err := cache.Save(c.app.ctx); err != nil {
		return fmt.Errorf("saving token cache: %w", err)
	}

	log.Info().
		Str("tenant_id", c.Args.TenantID).
		Str("resource", c.Args.Resource).
		Msg("token removed")

	return nil
}

type clearCommand struct {
	app *app
}

func (c *clearCommand) Execute([]string) error {
	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	if err := cache.Clear(c.app.ctx); err != nil {
		return err
	}

	log.Info().Msg("token cache cleared")
	return nil
}

type inspectCommand struct {
	Args cacheKey `positional-args:"yes" required:"yes"`

	app *app
}

func (c *inspectCommand) Execute([]string) error {
	cache, err := c.app.openCache()
	if err != nil {
		return err
	}

	tok, ok := cache.GetToken(c.Args.TenantID, c.Args.Resource)
	if !ok {
		return c.Args.notFound()
	}

	claims, err := tok.Claims()
	if err != nil {
		return err
	}

	return writeJSON(c.app.out, newClaimsView(claims))
}

type keygenCommand struct {
	Args struct {
		Path string `positional-arg-name:"KEYSET_FILE" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

func (c *keygenCommand) Execute([]string) error {
	if err := encryption.WriteKeysetFile(c.Args.Path); err != nil {
		return err
	}

	log.Info().Str("keyset_file", c.Args.Path).Msg("keyset written")
	return nil
}
