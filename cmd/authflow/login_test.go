package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/console"
	"github.com/jrsteele09/go-auth-flow/guard"
	"github.com/jrsteele09/go-auth-flow/internal/config/configfake"
	"github.com/jrsteele09/go-auth-flow/mockapi"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(t *testing.T, input string) (*app, *syncBuffer) {
	t.Helper()
	backend := mockapi.New(configfake.New(""))
	require.NoError(t, seedDemoUser(backend))
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	cfg := configfake.New(srv.URL)
	store := sessions.NewStore()
	client, err := authapi.New(cfg, store)
	require.NoError(t, err)
	routes := guard.NewRoutes(cfg, store, client)
	t.Cleanup(routes.Close)

	out := &syncBuffer{}
	return &app{
		cfg:    cfg,
		store:  store,
		client: client,
		routes: routes,
		lines:  console.ScanLines(strings.NewReader(input)),
		out:    out,
	}, out
}

func TestApp_PasswordLoginWhoamiLogout(t *testing.T) {
	a, out := newTestApp(t, "p\ndemo\nsecret1\nwhoami\nlogout\n")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.run(ctx, "/dashboard")
	require.ErrorIs(t, err, errInputClosed)

	text := out.String()
	require.Contains(t, text, "Signed in as Demo User")
	require.Contains(t, text, "Signed out.")
	require.Equal(t, 2, strings.Count(text, "Checking your session..."), "logging out leads back through the guard")
	require.False(t, a.store.Snapshot().Authenticated)
}

func TestApp_RootRedirectsToLogin(t *testing.T) {
	a, out := newTestApp(t, "p\ndemo\nsecret1\nquit\n")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, a.run(ctx, "/"))
	require.Contains(t, out.String(), "Signed in as Demo User")
	require.True(t, a.store.Snapshot().Authenticated)
}

func TestApp_UnknownRoute(t *testing.T) {
	a, out := newTestApp(t, "")
	require.NoError(t, a.run(context.Background(), "/settings"))
	require.Contains(t, out.String(), "page not found")
}
