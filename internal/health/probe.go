package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/linnemanlabs-starter/internal/xerrors"
)

// Probe is evaluated at request time
// nil = OK non-nil = FAIL with reason.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed returns a probe that always returns ok or fails with the given reason
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only if every non-nil probe passes; it returns the first failure.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// ShutdownGate fails readiness while draining. The zero value is open.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Pointer[string]
}

// Drain closes the gate. An empty reason reports "draining".
func (g *ShutdownGate) Drain(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(&reason)
	g.draining.Store(true)
}

// Open re-opens the gate, e.g. once the public listener is bound.
func (g *ShutdownGate) Open() {
	g.draining.Store(false)
}

func (g *ShutdownGate) Draining() bool { return g.draining.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r := "draining"
		if p := g.reason.Load(); p != nil {
			r = *p
		}
		return xerrors.New(r)
	}
}
