// Package tokencache keeps access tokens in memory, keyed by tenant and
// resource, and mirrors them to a key-value storage backend so they survive
// restarts.
//
// The persisted form is a single JSON object stored under one key:
//
//	{"<tenant>": {"<resource>": <raw token record>}}
//
// On load, entries that are malformed, fail validation or have expired are
// dropped. Data that cannot be parsed at all is deleted from storage.
package tokencache

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/batchexplorer/tokencache/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "current_access_token"

// Expirer is the behaviour the cache needs from a token.
type Expirer interface {
	HasExpired() bool
}

// Model validates and constructs tokens from their raw persisted records.
type Model[T Expirer] interface {
	IsValid(raw json.RawMessage) bool
	Decode(raw json.RawMessage) (T, error)
}

type State int

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type options struct {
	storage      storage.Storage
	key          string
	logger       *zerolog.Logger
	writeTimeout time.Duration
}

type Option func(*options)

// WithStorage sets the persistence backend. Without it the cache is
// memory-only.
func WithStorage(s storage.Storage) Option {
	return func(o *options) {
		if s != nil {
			o.storage = s
		}
	}
}

// WithKey sets the storage key holding the serialized cache.
func WithKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

// WithWriteTimeout bounds each background persistence write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// Cache holds tokens by tenant and resource. All methods are safe for
// concurrent use.
type Cache[T Expirer] struct {
	model        Model[T]
	storage      storage.Storage
	key          string
	logger       zerolog.Logger
	writeTimeout time.Duration

	mu         sync.RWMutex
	tokens     map[string]map[string]T
	state      State
	generation uint64
	// snapshots at or below stale predate a Clear or a load and are
	// never written.
	stale uint64

	// writeSlot serializes storage access and is acquired with a context.
	// written is the generation of the newest snapshot that reached storage.
	writeSlot chan struct{}
	written   uint64

	pending pendingWrites
}

// New creates an empty cache. Call Init before relying on its contents when
// a storage backend is configured.
func New[T Expirer](model Model[T], opts ...Option) *Cache[T] {
	o := options{
		storage: storage.Nop{},
		key:     DefaultKey,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}

	return &Cache[T]{
		model:        model,
		storage:      o.storage,
		key:          o.key,
		logger:       logger.With().Str("storage_key", o.key).Logger(),
		writeTimeout: o.writeTimeout,
		tokens:       map[string]map[string]T{},
		writeSlot:    make(chan struct{}, 1),
	}
}

// Init loads persisted tokens. Missing or corrupt data leaves the cache
// empty and is not an error; a failure to read from storage is logged and
// returned, and the cache remains usable in memory.
func (c *Cache[T]) Init(ctx context.Context) error {
	c.setState(Loading)
	defer c.setState(Ready)

	if err := c.load(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("token cache load failed; continuing with in-memory tokens")
		return err
	}

	return nil
}

func (c *Cache[T]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Cache[T]) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// HasToken reports whether a token is held for the tenant and resource.
func (c *Cache[T]) HasToken(tenantID, resource string) bool {
	_, ok := c.GetToken(tenantID, resource)
	return ok
}

// GetToken returns the token held for the tenant and resource. A missing
// entry is reported through the boolean, never as an error.
func (c *Cache[T]) GetToken(tenantID, resource string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token, ok := c.tokens[tenantID][resource]
	return token, ok
}

// StoreToken inserts or replaces the token for the tenant and resource, then
// persists the whole cache in the background. The write is not complete when
// StoreToken returns; use Flush to wait for it.
func (c *Cache[T]) StoreToken(tenantID, resource string, token T) {
	c.mu.Lock()
	tenant, ok := c.tokens[tenantID]
	if !ok {
		tenant = map[string]T{}
		c.tokens[tenantID] = tenant
	}
	tenant[resource] = token
	data, gen, err := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("token cache could not be serialized; not persisted")
		return
	}

	c.pending.add()
	go func() {
		defer c.pending.done()

		ctx, cancel := c.writeContext()
		defer cancel()

		if err := c.write(ctx, data, gen); err != nil {
			c.logger.Warn().Err(err).Msg("token cache persistence failed")
		}
	}()
}

// RemoveToken deletes the token for the tenant and resource if present.
//
// Unlike StoreToken, removal is not persisted: the stored copy keeps the
// token until the next StoreToken, Save or Clear. Callers that need the
// removal to be durable must call Save.
func (c *Cache[T]) RemoveToken(tenantID, resource string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tenant, ok := c.tokens[tenantID]
	if !ok {
		return
	}
	delete(tenant, resource)
}

// Clear drops every token and removes the persisted key. Background writes
// issued before Clear are discarded rather than resurrecting old tokens. If
// ctx ends while another write holds storage, the in-memory tokens are still
// cleared but the persisted key may remain, and ctx's error is returned.
func (c *Cache[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.tokens = map[string]map[string]T{}
	c.generation++
	c.stale = c.generation
	c.mu.Unlock()

	if err := c.acquireWrite(ctx); err != nil {
		return fmt.Errorf("removing persisted tokens: %w", err)
	}
	defer c.releaseWrite()

	if err := c.storage.RemoveItem(ctx, c.key); err != nil {
		return fmt.Errorf("removing persisted tokens: %w", err)
	}

	return nil
}

// Save synchronously persists the current contents.
func (c *Cache[T]) Save(ctx context.Context) error {
	c.mu.Lock()
	data, gen, err := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		return err
	}

	return c.write(ctx, data, gen)
}

// Flush waits for background writes started by StoreToken to finish.
func (c *Cache[T]) Flush(ctx context.Context) error {
	return c.pending.wait(ctx)
}

// Entry is a single cached token with its keys.
type Entry[T any] struct {
	TenantID string
	Resource string
	Token    T
}

// Entries returns every cached token, ordered by tenant then resource.
func (c *Cache[T]) Entries() []Entry[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []Entry[T]
	for tenantID, resources := range c.tokens {
		for resource, token := range resources {
			entries = append(entries, Entry[T]{TenantID: tenantID, Resource: resource, Token: token})
		}
	}

	slices.SortFunc(entries, func(a, b Entry[T]) int {
		return cmp.Or(
			cmp.Compare(a.TenantID, b.TenantID),
			cmp.Compare(a.Resource, b.Resource),
		)
	})

	return entries
}

// Tenants returns the tenants holding at least one token, sorted.
func (c *Cache[T]) Tenants() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tenants := make([]string, 0, len(c.tokens))
	for tenantID, resources := range c.tokens {
		if len(resources) > 0 {
			tenants = append(tenants, tenantID)
		}
	}
	slices.Sort(tenants)

	return tenants
}

func (c *Cache[T]) writeContext() (context.Context, context.CancelFunc) {
	if c.writeTimeout > 0 {
		return context.WithTimeout(context.Background(), c.writeTimeout)
	}
	return context.WithCancel(context.Background())
}
