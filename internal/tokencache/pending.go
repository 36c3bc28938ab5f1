package tokencache

import (
	"context"
	"sync"
)

// pendingWrites counts background writes in flight. Unlike sync.WaitGroup it
// allows new writes to start while another goroutine is waiting.
type pendingWrites struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (p *pendingWrites) add() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.n == 0 {
		p.idle = make(chan struct{})
	}
	p.n++
}

func (p *pendingWrites) done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.n--
	if p.n == 0 {
		close(p.idle)
	}
}

func (p *pendingWrites) wait(ctx context.Context) error {
	p.mu.Lock()
	if p.n == 0 {
		p.mu.Unlock()
		return nil
	}
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
