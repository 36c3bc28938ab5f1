package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/batchexplorer/tokencache/internal/storage"
)

// snapshotLocked serializes the whole cache and tags it with a new
// generation. c.mu must be held for writing.
func (c *Cache[T]) snapshotLocked() (string, uint64, error) {
	data, err := json.Marshal(c.tokens)
	if err != nil {
		return "", 0, fmt.Errorf("serializing tokens: %w", err)
	}

	c.generation++
	return string(data), c.generation, nil
}

// acquireWrite takes the single storage write slot, giving up when ctx ends.
func (c *Cache[T]) acquireWrite(ctx context.Context) error {
	select {
	case c.writeSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache[T]) releaseWrite() {
	<-c.writeSlot
}

// write stores a snapshot unless a newer one has already reached storage or
// a Clear or load has since replaced the tokens, so the most recent call
// wins regardless of the order in which writes complete.
func (c *Cache[T]) write(ctx context.Context, data string, gen uint64) error {
	if err := c.acquireWrite(ctx); err != nil {
		return fmt.Errorf("waiting to write tokens: %w", err)
	}
	defer c.releaseWrite()

	c.mu.RLock()
	stale := c.stale
	c.mu.RUnlock()

	if gen <= c.written || gen <= stale {
		c.logger.Debug().
			Uint64("generation", gen).
			Uint64("written", c.written).
			Uint64("stale", stale).
			Msg("skipping superseded token cache snapshot")
		return nil
	}

	if err := c.storage.SetItem(ctx, c.key, data); err != nil {
		return fmt.Errorf("writing tokens to storage: %w", err)
	}
	c.written = gen

	return nil
}

// load reads the persisted cache and replaces the in-memory tokens with the
// usable entries found. When nothing usable is found the in-memory tokens
// are left as they are.
func (c *Cache[T]) load(ctx context.Context) error {
	raw, found, err := c.storage.GetItem(ctx, c.key)
	switch {
	case errors.Is(err, storage.ErrCorrupt):
		c.discard(ctx, err)
		return nil
	case err != nil:
		return fmt.Errorf("reading tokens from storage: %w", err)
	case !found || raw == "":
		c.logger.Debug().Msg("no persisted tokens")
		return nil
	}

	tokens, err := c.decode([]byte(raw))
	if err != nil {
		c.discard(ctx, err)
		return nil
	}

	if len(tokens) == 0 {
		return nil
	}

	c.mu.Lock()
	c.tokens = tokens
	c.generation++
	c.stale = c.generation
	c.mu.Unlock()

	return nil
}

// discard removes persisted data that could not be read.
func (c *Cache[T]) discard(ctx context.Context, cause error) {
	c.logger.Warn().Err(cause).Msg("persisted tokens are corrupt; removing")

	if err := c.storage.RemoveItem(ctx, c.key); err != nil {
		c.logger.Warn().Err(err).Msg("failed to remove corrupt persisted tokens")
	}
}

// decode walks the persisted structure, keeping valid unexpired tokens.
// Only unparseable data and a null document are errors. Any other JSON
// value that is not an object holds no tenants and yields nothing; problems
// with individual tenants or resources skip that entry.
func (c *Cache[T]) decode(data []byte) (map[string]map[string]T, error) {
	var doc json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing persisted tokens: %w", err)
	}

	var tenants map[string]json.RawMessage
	if err := json.Unmarshal(doc, &tenants); err != nil {
		c.logger.Debug().Msg("persisted tokens are not an object; nothing loaded")
		return map[string]map[string]T{}, nil
	}
	if tenants == nil {
		return nil, errors.New("parsing persisted tokens: document is null")
	}

	var skipped, expired, loaded int

	tokens := map[string]map[string]T{}
	for tenantID, rawTenant := range tenants {
		var resources map[string]json.RawMessage
		if err := json.Unmarshal(rawTenant, &resources); err != nil || resources == nil {
			skipped++
			continue
		}

		for resource, rawToken := range resources {
			if !c.model.IsValid(rawToken) {
				skipped++
				continue
			}

			token, err := c.model.Decode(rawToken)
			if err != nil {
				skipped++
				continue
			}

			if token.HasExpired() {
				expired++
				continue
			}

			if _, ok := tokens[tenantID]; !ok {
				tokens[tenantID] = map[string]T{}
			}
			tokens[tenantID][resource] = token
			loaded++
		}
	}

	c.logger.Debug().
		Int("loaded", loaded).
		Int("expired", expired).
		Int("skipped", skipped).
		Msg("persisted tokens loaded")

	return tokens, nil
}
