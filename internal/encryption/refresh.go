package encryption

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tink-crypto/tink-go/v2/tink"
)

// DefaultRefreshInterval is how often a keyset file is re-read when no
// interval is configured.
const DefaultRefreshInterval = 15 * time.Minute

// aeadLoader loads an AEAD from external key material.
type aeadLoader func(ctx context.Context) (tink.AEAD, error)

// RefreshableAEAD wraps a tink.AEAD and reloads its keyset on an interval,
// so a rotated keyset file is picked up without restarting. A failed reload
// is logged and the current keyset stays in use.
type RefreshableAEAD struct {
	mu     sync.RWMutex
	aead   tink.AEAD
	loader aeadLoader
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRefreshableAEADFromFile loads the keyset at path and re-reads it every
// interval (DefaultRefreshInterval when interval is not positive). The
// initial load is synchronous; its failure is returned and no goroutine is
// started. Call Close to stop refreshing.
func NewRefreshableAEADFromFile(ctx context.Context, path string, interval time.Duration) (*RefreshableAEAD, error) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	loader := func(context.Context) (tink.AEAD, error) {
		return NewAEADFromKeysetFile(path)
	}

	return newRefreshableAEAD(ctx, loader, interval)
}

func newRefreshableAEAD(ctx context.Context, loader aeadLoader, interval time.Duration) (*RefreshableAEAD, error) {
	initial, err := loader(ctx)
	if err != nil {
		return nil, err
	}

	r := &RefreshableAEAD{
		aead:   initial,
		loader: loader,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go r.refreshLoop(ctx, interval)

	return r, nil
}

// Encrypt delegates to the current AEAD under a read lock.
func (r *RefreshableAEAD) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aead.Encrypt(plaintext, associatedData)
}

// Decrypt delegates to the current AEAD under a read lock.
func (r *RefreshableAEAD) Decrypt(ciphertext, associatedData []byte) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aead.Decrypt(ciphertext, associatedData)
}

// Close stops the refresh goroutine and waits for it to exit.
func (r *RefreshableAEAD) Close() error {
	close(r.stopCh)
	<-r.doneCh
	return nil
}

func (r *RefreshableAEAD) current() tink.AEAD {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aead
}

func (r *RefreshableAEAD) refreshLoop(ctx context.Context, interval time.Duration) {
	defer close(r.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RefreshableAEAD) refresh(ctx context.Context) {
	log.Debug().Msg("reloading encryption keyset")

	next, err := r.loader(ctx)
	if err != nil {
		log.Warn().
			Err(err).
			Msg("keyset reload failed, continuing with current keyset")
		return
	}

	r.mu.Lock()
	r.aead = next
	r.mu.Unlock()

	log.Debug().Msg("encryption keyset reloaded")
}
