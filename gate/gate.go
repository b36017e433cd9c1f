// Package gate serialises session renewal for every outbound API call.
//
// Calls run through Gate.Execute. When a call fails as unauthorized, exactly one
// caller (the leader) refreshes the session while every other caller that hit the
// same expiry waits on that refresh and then replays its call once. Callers that
// arrive while a refresh is in flight wait for it before issuing anything.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
	"github.com/rs/zerolog/log"
)

// State of the gate
type State int

const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Refresher renews the session. It is called directly, never through the gate.
type Refresher func(ctx context.Context) error

// Op is a single outbound call. It may be invoked twice: once, and once more after a refresh.
type Op func(ctx context.Context) error

const defaultRefreshTimeout = 10 * time.Second

// flight is one refresh attempt shared by its leader and all followers.
type flight struct {
	done    chan struct{}
	err     error
	waiters int
}

type Gate struct {
	refresh        Refresher
	onExpired      func()
	isUnauthorized func(error) bool
	timeout        time.Duration

	mu        sync.Mutex
	inflight  *flight
	epoch     uint64 // number of refreshes that have resolved
	lastErr   error  // outcome of the latest resolved refresh
	refreshes uint64
	failures  uint64
}

type Option func(*Gate)

// WithOnExpired sets the side effect run when a refresh fails (typically clearing the session).
// It runs before any waiter is released.
func WithOnExpired(fn func()) Option {
	return func(g *Gate) { g.onExpired = fn }
}

// WithRefreshTimeout bounds the shared refresh call
func WithRefreshTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithUnauthorizedFunc overrides how an error is classified as "session expired"
func WithUnauthorizedFunc(fn func(error) bool) Option {
	return func(g *Gate) { g.isUnauthorized = fn }
}

func New(refresh Refresher, opts ...Option) *Gate {
	g := &Gate{
		refresh: refresh,
		timeout: defaultRefreshTimeout,
		isUnauthorized: func(err error) bool {
			return apperrors.Is(err, apperrors.ErrUnauthorized)
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Stats is a point-in-time view of the gate
type Stats struct {
	State     State
	Waiting   int    // followers blocked on the current refresh
	Refreshes uint64 // refresh calls issued
	Failures  uint64 // refresh calls that failed
}

func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := Stats{State: Idle, Refreshes: g.refreshes, Failures: g.failures}
	if g.inflight != nil {
		st.State = Refreshing
		st.Waiting = g.inflight.waiters
	}
	return st
}

func (g *Gate) State() State {
	return g.Stats().State
}

// Execute runs op, renewing the session at most once if op fails as unauthorized.
// Errors other than unauthorized pass through untouched and are never retried.
func (g *Gate) Execute(ctx context.Context, op Op) error {
	issuedAt, err := g.awaitIdle(ctx)
	if err != nil {
		return err
	}

	opErr := op(ctx)
	if opErr == nil || !g.isUnauthorized(opErr) {
		return opErr
	}

	f, leader, resolved, resolvedErr := g.join(issuedAt)
	switch {
	case resolved:
		if resolvedErr != nil {
			return opErr
		}
		// A refresh finished while op was in flight; its cookie is already in place.
		log.Debug().Msg("gate: refresh resolved during call, replaying")
		return op(ctx)
	case leader:
		if err := g.lead(ctx, f); err != nil {
			return opErr
		}
		return op(ctx)
	default:
		select {
		case <-f.done:
		case <-ctx.Done():
			g.leave(f)
			return ctx.Err()
		}
		if f.err != nil {
			return opErr
		}
		return op(ctx)
	}
}

// awaitIdle blocks while a refresh is in flight and returns the epoch observed once idle
func (g *Gate) awaitIdle(ctx context.Context) (uint64, error) {
	for {
		g.mu.Lock()
		f, epoch := g.inflight, g.epoch
		g.mu.Unlock()
		if f == nil {
			return epoch, nil
		}
		select {
		case <-f.done:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// join decides the caller's role after an unauthorized response
func (g *Gate) join(issuedAt uint64) (f *flight, leader, resolved bool, resolvedErr error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight != nil {
		g.inflight.waiters++
		return g.inflight, false, false, nil
	}
	if g.epoch != issuedAt {
		return nil, false, true, g.lastErr
	}
	g.inflight = &flight{done: make(chan struct{})}
	g.refreshes++
	return g.inflight, true, false, nil
}

func (g *Gate) leave(f *flight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight == f {
		f.waiters--
	}
}

// lead performs the shared refresh. The caller's cancellation is detached so one
// abandoned request cannot fail everyone queued behind it.
func (g *Gate) lead(ctx context.Context, f *flight) (err error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	log.Info().Msg("gate: session expired, refreshing")
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
		g.resolve(f, err)
	}()
	return g.refresh(rctx)
}

func (g *Gate) resolve(f *flight, err error) {
	g.mu.Lock()
	f.err = err
	g.inflight = nil
	g.epoch++
	g.lastErr = err
	if err != nil {
		g.failures++
	}
	waiters := f.waiters
	g.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Int("waiters", waiters).Msg("gate: refresh failed, session expired")
		if g.onExpired != nil {
			g.onExpired()
		}
	} else {
		log.Info().Int("waiters", waiters).Msg("gate: session refreshed")
	}
	close(f.done)
}
