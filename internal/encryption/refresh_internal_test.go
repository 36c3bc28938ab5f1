package encryption

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tink-crypto/tink-go/v2/tink"
)

// sequenceLoader returns the given results in order, repeating the last.
func sequenceLoader(calls *atomic.Int32, results ...func() (tink.AEAD, error)) aeadLoader {
	return func(context.Context) (tink.AEAD, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(results) {
			n = len(results) - 1
		}
		return results[n]()
	}
}

func returning(a tink.AEAD) func() (tink.AEAD, error) {
	return func() (tink.AEAD, error) { return a, nil }
}

func failing(err error) func() (tink.AEAD, error) {
	return func() (tink.AEAD, error) { return nil, err }
}

func TestRefreshableAEAD_InitialLoadFailure(t *testing.T) {
	loadErr := errors.New("keyset unreadable")
	calls := atomic.Int32{}

	r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, failing(loadErr)), time.Hour)

	assert.Nil(t, r)
	assert.ErrorIs(t, err, loadErr)
}

func TestRefreshableAEAD_Delegates(t *testing.T) {
	calls := atomic.Int32{}
	r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, returning(&fakeAEAD{})), time.Hour)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	ct, err := r.Encrypt([]byte("hello"), []byte("aad"))
	require.NoError(t, err)

	pt, err := r.Decrypt(ct, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), pt)
}

func TestRefreshableAEAD_Refresh(t *testing.T) {
	first := &fakeAEAD{id: "first"}
	second := &fakeAEAD{id: "second"}

	t.Run("replaces on success", func(t *testing.T) {
		calls := atomic.Int32{}
		r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, returning(first), returning(second)), 10*time.Millisecond)
		require.NoError(t, err)
		defer func() { assert.NoError(t, r.Close()) }()

		require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		assert.Eventually(t, func() bool { return r.current() == tink.AEAD(second) }, time.Second, 5*time.Millisecond)
	})

	t.Run("keeps current on failure", func(t *testing.T) {
		calls := atomic.Int32{}
		r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, returning(first), failing(errors.New("gone"))), 10*time.Millisecond)
		require.NoError(t, err)
		defer func() { assert.NoError(t, r.Close()) }()

		require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		assert.Same(t, first, r.current())
	})
}

func TestRefreshableAEAD_CloseStopsRefresh(t *testing.T) {
	calls := atomic.Int32{}
	r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, returning(&fakeAEAD{})), 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, r.Close())

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "loader should not run after Close")
}

func TestRefreshableAEAD_ConcurrentUse(t *testing.T) {
	calls := atomic.Int32{}
	r, err := newRefreshableAEAD(context.Background(), sequenceLoader(&calls, returning(&fakeAEAD{})), 5*time.Millisecond)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = r.Encrypt([]byte("data"), []byte("aad"))
				_, _ = r.Decrypt([]byte("data"), []byte("aad"))
			}
		}()
	}
	wg.Wait()
}

func TestNewRefreshableAEADFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyset.json")
	require.NoError(t, WriteKeysetFile(path))

	r, err := NewRefreshableAEADFromFile(context.Background(), path, 0)
	require.NoError(t, err)
	defer func() { assert.NoError(t, r.Close()) }()

	assert.NoError(t, Validate(r))
}

func TestNewRefreshableAEADFromFile_Missing(t *testing.T) {
	_, err := NewRefreshableAEADFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), time.Minute)
	assert.Error(t, err)
}
