package storage

import (
	"context"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-process storage implementation using otter. Items never
// expire; the bound on size only protects against unbounded key growth.
type Memory struct {
	cache   *otter.Cache[string, string]
	counter *stats.Counter
}

// NewMemory creates an in-memory storage holding at most maxSize keys.
func NewMemory(maxSize int) *Memory {
	counter := stats.NewCounter()
	cache := otter.Must(&otter.Options[string, string]{
		MaximumSize:   maxSize,
		StatsRecorder: counter,
	})

	return &Memory{
		cache:   cache,
		counter: counter,
	}
}

func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		return "", false, nil
	}

	return entry.Value, true, nil
}

func (m *Memory) SetItem(_ context.Context, key, value string) error {
	m.cache.Set(key, value)
	return nil
}

func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Stats returns the hit and miss counts recorded so far.
func (m *Memory) Stats() stats.Stats {
	return m.counter.Snapshot()
}
