package console_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/console"
	"github.com/jrsteele09/go-auth-flow/flow"
	"github.com/jrsteele09/go-auth-flow/flow/flowfake"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/stretchr/testify/require"
)

func TestNotifier(t *testing.T) {
	var out bytes.Buffer
	n := console.NewNotifier(&out, false)
	n.Notify(flow.Notification{Level: flow.LevelWarning, Message: "profile data may be stale"})
	require.Equal(t, "[warning] profile data may be stale\n", out.String())

	out.Reset()
	console.NewNotifier(&out, true).Notify(flow.Notification{Level: flow.LevelError, Message: "nope"})
	require.Equal(t, console.Red+"[error]"+console.ResetColor+" nope\n", out.String())
}

func TestNavigator(t *testing.T) {
	nav := console.NewNavigator()
	select {
	case <-nav.Arrived():
		t.Fatal("arrived before navigating")
	default:
	}
	nav.Navigate("/dashboard")
	nav.Navigate("/dashboard/again")
	<-nav.Arrived()
	require.Equal(t, "/dashboard/again", nav.Target())
}

// syncBuffer is written by both the wizard and the flow's notifier
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

func runWizard(t *testing.T, api *flowfake.API, store *sessions.Store, input string) (string, string, error) {
	t.Helper()
	var out syncBuffer
	nav := console.NewNavigator()
	ctrl := flow.New(api, store, flow.WithNavigator(nav), flow.WithNotifier(console.NewNotifier(&out, false)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { _ = ctrl.Run(ctx) }()
	defer ctrl.Close()

	w := console.NewWizard(ctrl, console.ScanLines(strings.NewReader(input)), &out, false)
	target, err := w.Run(ctx)
	return target, out.String(), err
}

func TestWizard_RegistersNewUser(t *testing.T) {
	store := sessions.NewStore()
	api := flowfake.New(store)

	input := strings.Join([]string{
		"0912",        // rejected locally
		"09123456789", // code sent
		"1234",        // incomplete
		"12345",       // auto-submitted, profile incomplete
		"Sara", "Karimi", "sarak", "", "secret1",
	}, "\n") + "\n"

	target, out, err := runWizard(t, api, store, input)
	require.NoError(t, err)
	require.Equal(t, "/dashboard", target)

	require.Contains(t, out, "The number must be 11 digits")
	require.Contains(t, out, "Verify your mobile number")
	require.Contains(t, out, "Please enter the 5-digit code")
	require.Contains(t, out, "Complete your registration")
	require.Contains(t, out, "[success] Signed in successfully")

	require.Len(t, api.Calls(authapi.PathLoginOTP), 1)
	require.True(t, store.Snapshot().HasProfile())
}

func TestWizard_PasswordLoginRetry(t *testing.T) {
	store := sessions.NewStore()
	api := flowfake.New(store)
	attempts := 0
	api.LoginPasswordFunc = func(req authapi.LoginPasswordRequest) (authapi.LoginResponse, error) {
		attempts++
		if req.Password != "secret1" {
			return authapi.LoginResponse{}, &authapi.APIError{Op: "test", Status: 400, Kind: authapi.KindRejected, Message: "Invalid username or password"}
		}
		return authapi.LoginResponse{IsProfileCompleted: true}, nil
	}

	input := "p\nsarak\nwrong\nsarak\nsecret1\n"
	target, out, err := runWizard(t, api, store, input)
	require.NoError(t, err)
	require.Equal(t, "/dashboard", target)
	require.Contains(t, out, "[error] Invalid username or password")
	require.Equal(t, 2, attempts)
}

func TestWizard_EndOfInput(t *testing.T) {
	store := sessions.NewStore()
	_, _, err := runWizard(t, flowfake.New(store), store, "09123456789\n")
	require.ErrorIs(t, err, io.EOF)
}
