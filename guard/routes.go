package guard

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-auth-flow/internal/config"
	"github.com/jrsteele09/go-auth-flow/sessions"
)

const guestPrefix = "/auth"

// Routes is the application's route table: "/" goes to the login page, the auth
// pages are for guests, the landing area requires a session, anything else is not found.
type Routes struct {
	loginPath string
	landing   string
	guest     *GuestGuard
	auth      *AuthGuard
}

func NewRoutes(cfg config.RouteConfig, store *sessions.Store, fetcher ProfileFetcher) *Routes {
	return &Routes{
		loginPath: cfg.GetLoginPath(),
		landing:   cfg.GetLandingPath(),
		guest:     NewGuestGuard(store, cfg.GetLandingPath()),
		auth:      NewAuthGuard(store, NewLoader(fetcher), cfg.GetLoginPath()),
	}
}

// Resolve decides what navigating to path shows
func (r *Routes) Resolve(ctx context.Context, path string) Decision {
	switch {
	case path == "/" || path == "":
		return Decision{Outcome: Redirect, To: r.loginPath}
	case under(path, guestPrefix):
		return r.guest.Check(ctx, path)
	case under(path, r.landing):
		return r.auth.Check(ctx, path)
	default:
		return Decision{Outcome: NotFound}
	}
}

// Await waits for the protected area's profile fetch, if one is running
func (r *Routes) Await(ctx context.Context) error {
	return r.auth.Await(ctx)
}

func (r *Routes) Close() {
	r.auth.Close()
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
