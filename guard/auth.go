package guard

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/rs/zerolog/log"
)

// FetchState of the profile fetch an AuthGuard issues on mount
type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchSuccess
	FetchError
)

func (s FetchState) String() string {
	switch s {
	case FetchIdle:
		return "idle"
	case FetchLoading:
		return "loading"
	case FetchSuccess:
		return "success"
	case FetchError:
		return "error"
	default:
		return fmt.Sprintf("FetchState(%d)", int(s))
	}
}

// AuthGuard lets signed-in users through. When the session is not yet known to be
// authenticated it fetches the profile once and decides from the outcome.
type AuthGuard struct {
	store     *sessions.Store
	loader    *Loader
	loginPath string
	cancelSub func()

	mu      sync.Mutex
	state   FetchState
	settled chan struct{}
}

var _ Guard = (*AuthGuard)(nil)

func NewAuthGuard(store *sessions.Store, loader *Loader, loginPath string) *AuthGuard {
	g := &AuthGuard{store: store, loader: loader, loginPath: loginPath}
	g.cancelSub = store.Subscribe(g.sessionChanged)
	return g
}

// Check mounts the guard: unless the session is authenticated, the first check starts
// the profile fetch. Further checks report its progress.
func (g *AuthGuard) Check(ctx context.Context, target string) Decision {
	authenticated := g.store.Snapshot().Authenticated

	g.mu.Lock()
	if !authenticated && g.state == FetchIdle {
		g.startLocked(ctx)
	}
	state := g.state
	g.mu.Unlock()

	return g.decide(state, authenticated, target)
}

// Await blocks until the current fetch settles. It returns at once when none was started.
func (g *AuthGuard) Await(ctx context.Context) error {
	g.mu.Lock()
	settled := g.settled
	g.mu.Unlock()
	if settled == nil {
		return nil
	}
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *AuthGuard) State() FetchState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Close stops following session changes
func (g *AuthGuard) Close() {
	g.cancelSub()
}

func (g *AuthGuard) decide(state FetchState, authenticated bool, target string) Decision {
	switch {
	case authenticated || state == FetchSuccess:
		return Decision{Outcome: Render}
	case state == FetchLoading:
		return Decision{Outcome: Wait}
	case state == FetchError:
		return Decision{Outcome: Redirect, To: g.loginPath, From: target}
	default:
		log.Error().
			Str("target", target).
			Stringer("fetch", state).
			Bool("authenticated", authenticated).
			Msg("auth guard has no decision")
		return Decision{Outcome: Nothing}
	}
}

func (g *AuthGuard) startLocked(ctx context.Context) {
	g.state = FetchLoading
	settled := make(chan struct{})
	g.settled = settled

	result := g.loader.Start(ctx)
	go func() {
		err := (<-result).Err

		g.mu.Lock()
		defer g.mu.Unlock()
		if err != nil {
			log.Debug().Err(err).Msg("auth guard profile fetch failed")
			g.state = FetchError
		} else {
			g.state = FetchSuccess
		}
		close(settled)
	}()
}

// sessionChanged lets the next check fetch again once the session has been cleared
func (g *AuthGuard) sessionChanged(s sessions.Session) {
	if s.Authenticated {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == FetchSuccess || g.state == FetchError {
		g.state = FetchIdle
	}
}
