package guard

import (
	"context"

	"github.com/jrsteele09/go-auth-flow/sessions"
)

// GuestGuard lets only signed-out users through, sending everyone else to the landing page
type GuestGuard struct {
	store   *sessions.Store
	landing string
}

var _ Guard = (*GuestGuard)(nil)

func NewGuestGuard(store *sessions.Store, landing string) *GuestGuard {
	return &GuestGuard{store: store, landing: landing}
}

func (g *GuestGuard) Check(_ context.Context, _ string) Decision {
	if g.store.Snapshot().Authenticated {
		return Decision{Outcome: Redirect, To: g.landing}
	}
	return Decision{Outcome: Render}
}
