package flowfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/sessions"
)

// Call records one API invocation
type Call struct {
	Op  string
	Req any
}

// API is a scriptable stand-in for the session API. Unset funcs succeed; logins
// report an incomplete profile and GetProfile returns Profile.
type API struct {
	Store   *sessions.Store
	Profile sessions.Profile

	RequestOTPFunc      func(authapi.RequestOTPRequest) error
	LoginOTPFunc        func(authapi.LoginOTPRequest) (authapi.LoginResponse, error)
	LoginPasswordFunc   func(authapi.LoginPasswordRequest) (authapi.LoginResponse, error)
	CompleteProfileFunc func(authapi.CompleteProfileRequest) error
	ForgotPasswordFunc  func(authapi.ForgotPasswordRequest) error
	ResetPasswordFunc   func(authapi.ResetPasswordRequest) error
	GetProfileFunc      func() (*sessions.Profile, error)

	mu    sync.Mutex
	calls []Call
	hold  chan struct{}
}

func New(store *sessions.Store) *API {
	return &API{
		Store: store,
		Profile: sessions.Profile{
			ID:          "user-1",
			FirstName:   "Sara",
			LastName:    "Karimi",
			Username:    "sarak",
			PhoneNumber: "09123456789",
		},
	}
}

// SetHold makes later calls block until hold is closed or receives a value. nil stops holding.
func (a *API) SetHold(hold chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hold = hold
}

// Calls returns the recorded calls for op, or all calls when op is ""
func (a *API) Calls(op string) []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Call
	for _, c := range a.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (a *API) record(ctx context.Context, op string, req any) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Op: op, Req: req})
	hold := a.hold
	a.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
		}
	}
}

func (a *API) RequestOTP(ctx context.Context, req authapi.RequestOTPRequest) error {
	a.record(ctx, authapi.PathRequestOTP, req)
	if a.RequestOTPFunc != nil {
		return a.RequestOTPFunc(req)
	}
	return nil
}

func (a *API) LoginOTP(ctx context.Context, req authapi.LoginOTPRequest) (authapi.LoginResponse, error) {
	a.record(ctx, authapi.PathLoginOTP, req)
	if a.LoginOTPFunc != nil {
		return a.LoginOTPFunc(req)
	}
	return authapi.LoginResponse{}, nil
}

func (a *API) LoginPassword(ctx context.Context, req authapi.LoginPasswordRequest) (authapi.LoginResponse, error) {
	a.record(ctx, authapi.PathLoginPassword, req)
	if a.LoginPasswordFunc != nil {
		return a.LoginPasswordFunc(req)
	}
	return authapi.LoginResponse{}, nil
}

func (a *API) CompleteProfile(ctx context.Context, req authapi.CompleteProfileRequest) error {
	a.record(ctx, authapi.PathCompleteProfile, req)
	if a.CompleteProfileFunc != nil {
		return a.CompleteProfileFunc(req)
	}
	return nil
}

func (a *API) ForgotPassword(ctx context.Context, req authapi.ForgotPasswordRequest) error {
	a.record(ctx, authapi.PathForgotPassword, req)
	if a.ForgotPasswordFunc != nil {
		return a.ForgotPasswordFunc(req)
	}
	return nil
}

func (a *API) ResetPassword(ctx context.Context, req authapi.ResetPasswordRequest) error {
	a.record(ctx, authapi.PathResetPassword, req)
	if a.ResetPasswordFunc != nil {
		return a.ResetPasswordFunc(req)
	}
	return nil
}

// GetProfile writes the profile into Store on success, like authapi.Client does
func (a *API) GetProfile(ctx context.Context) (*sessions.Profile, error) {
	a.record(ctx, authapi.PathMe, nil)
	if a.GetProfileFunc != nil {
		p, err := a.GetProfileFunc()
		if err == nil && a.Store != nil {
			a.Store.SetCredentials(p)
		}
		return p, err
	}
	p := a.Profile
	if a.Store != nil {
		a.Store.SetCredentials(&p)
	}
	return &p, nil
}
