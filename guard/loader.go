package guard

import (
	"context"

	"github.com/jrsteele09/go-auth-flow/sessions"
	"golang.org/x/sync/singleflight"
)

// ProfileFetcher loads the signed-in user's profile and records it in the session store.
// *authapi.Client implements it.
type ProfileFetcher interface {
	GetProfile(ctx context.Context) (*sessions.Profile, error)
}

// Loader shares one in-flight profile fetch between every guard that asks for it
type Loader struct {
	fetcher ProfileFetcher
	group   singleflight.Group
}

func NewLoader(fetcher ProfileFetcher) *Loader {
	return &Loader{fetcher: fetcher}
}

// Start joins the fetch in flight or begins a new one. The fetch is not tied to
// ctx's cancellation. The channel receives exactly one result.
func (l *Loader) Start(ctx context.Context) <-chan singleflight.Result {
	bg := context.WithoutCancel(ctx)
	return l.group.DoChan("profile", func() (any, error) {
		return l.fetcher.GetProfile(bg)
	})
}

// Load is Start followed by waiting for the result or ctx
func (l *Loader) Load(ctx context.Context) (*sessions.Profile, error) {
	select {
	case res := <-l.Start(ctx):
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sessions.Profile), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
