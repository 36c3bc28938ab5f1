// Package shutdown runs cleanup steps, such as flushing pending cache writes
// and closing storage, when a command finishes.
package shutdown

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Hooks is an ordered list of cleanup steps. The zero value is ready to use.
type Hooks struct {
	hooks []hook
}

// AddContext registers a step that honours the shutdown context. Nil steps
// are ignored.
func (h *Hooks) AddContext(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Add registers a step with no context.
func (h *Hooks) Add(name string, fn func() error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}

	h.AddContext(name, func(context.Context) error { return fn() })
}

// Execute runs the steps in reverse order of registration, so resources are
// released after the things that depend on them. Every step runs even when
// an earlier one fails; failures are logged and returned together.
func (h *Hooks) Execute(ctx context.Context) error {
	l := log.Ctx(ctx)

	var errs []error
	for i := len(h.hooks) - 1; i >= 0; i-- {
		hk := h.hooks[i]
		hookLog := l.With().Str("hook", hk.name).Logger()

		if err := hk.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		hookLog.Debug().Msg("shutdown complete")
	}

	return errors.Join(errs...)
}
