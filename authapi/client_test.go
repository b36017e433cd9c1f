package authapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/internal/config/configfake"
	apperrors "github.com/jrsteele09/go-auth-flow/internal/errors"
	"github.com/jrsteele09/go-auth-flow/internal/utils"
	"github.com/jrsteele09/go-auth-flow/mockapi"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testPhone = "09123456789"

type testFixture struct {
	backend *mockapi.Server
	codes   *mockapi.CodeRecorder
	server  *httptest.Server
	store   *sessions.Store
	client  *authapi.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	codes := mockapi.NewCodeRecorder()
	cfg := configfake.New("")
	backend := mockapi.New(cfg, mockapi.WithCodeSender(codes))
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	cfg.BaseURL = server.URL
	store := sessions.NewStore()
	client, err := authapi.New(cfg, store)
	require.NoError(t, err)

	return &testFixture{backend: backend, codes: codes, server: server, store: store, client: client}
}

// loginByOTP signs the fixture's client in as a fresh user
func (f *testFixture) loginByOTP(t *testing.T) authapi.LoginResponse {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.client.RequestOTP(ctx, authapi.RequestOTPRequest{PhoneNumber: testPhone}))
	code := f.codes.Last(testPhone, mockapi.PurposeLogin)
	require.Len(t, code, mockapi.OTPLength)

	resp, err := f.client.LoginOTP(ctx, authapi.LoginOTPRequest{PhoneNumber: testPhone, Code: code})
	require.NoError(t, err)
	return resp
}

func TestClient_OTPLoginAndProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	resp := f.loginByOTP(t)
	require.False(t, resp.IsProfileCompleted)
	require.False(t, f.store.Snapshot().Authenticated, "login alone does not populate the session")

	profile, err := f.client.GetProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, testPhone, profile.PhoneNumber)

	snap := f.store.Snapshot()
	require.True(t, snap.Authenticated)
	require.Equal(t, testPhone, snap.Profile.PhoneNumber)
}

func TestClient_CompleteProfileThenPasswordLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.loginByOTP(t)

	err := f.client.CompleteProfile(ctx, authapi.CompleteProfileRequest{
		FirstName: utils.Ptr("Ali"),
		LastName:  utils.Ptr("Mohammadi"),
		Username:  utils.Ptr("ali_dev"),
		Email:     utils.PtrIfSet(""),
		Password:  utils.Ptr("secret1"),
	})
	require.NoError(t, err)

	t.Run("wrong password is a business rejection", func(t *testing.T) {
		_, err := f.client.LoginPassword(ctx, authapi.LoginPasswordRequest{Username: "ali_dev", Password: "nope"})
		require.ErrorIs(t, err, apperrors.ErrRejected)
		require.Equal(t, "Invalid username or password", authapi.UserMessage(err))
	})

	t.Run("correct password reports completed profile", func(t *testing.T) {
		resp, err := f.client.LoginPassword(ctx, authapi.LoginPasswordRequest{Username: "ali_dev", Password: "secret1"})
		require.NoError(t, err)
		require.True(t, resp.IsProfileCompleted)
	})
}

func TestClient_Rejections(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("invalid phone", func(t *testing.T) {
		err := f.client.RequestOTP(ctx, authapi.RequestOTPRequest{PhoneNumber: "12345"})
		require.ErrorIs(t, err, apperrors.ErrRejected)

		var apiErr *authapi.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusBadRequest, apiErr.Status)
		require.Equal(t, authapi.KindRejected, apiErr.Kind)
		require.Equal(t, "Invalid phone number", apiErr.UserMessage())
	})

	t.Run("wrong code", func(t *testing.T) {
		require.NoError(t, f.client.RequestOTP(ctx, authapi.RequestOTPRequest{PhoneNumber: testPhone}))
		_, err := f.client.LoginOTP(ctx, authapi.LoginOTPRequest{PhoneNumber: testPhone, Code: "00000x"})
		require.ErrorIs(t, err, apperrors.ErrRejected)
		require.Equal(t, "Invalid or expired code", authapi.UserMessage(err))
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.backend.SeedUser(mockapi.User{PhoneNumber: "09350000000", Username: "taken"}, "secret1")
		require.NoError(t, err)
		f.loginByOTP(t)

		err = f.client.CompleteProfile(ctx, authapi.CompleteProfileRequest{Username: utils.Ptr("taken")})
		require.ErrorIs(t, err, apperrors.ErrRejected)
		require.Equal(t, "Username is already taken", authapi.UserMessage(err))
	})
}

func TestClient_RenewsExpiredSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.loginByOTP(t)

	f.backend.ExpireAccessTokens()
	profile, err := f.client.GetProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, testPhone, profile.PhoneNumber)
	require.EqualValues(t, 1, f.backend.RefreshCalls())
}

func TestClient_ConcurrentExpiryRefreshesOnce(t *testing.T) {
	const n = 10
	f := setupTestFixture(t)
	f.loginByOTP(t)
	f.backend.ExpireAccessTokens()

	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := f.client.GetProfile(context.Background())
			return err
		})
	}
	require.NoError(t, eg.Wait())
	require.EqualValues(t, 1, f.backend.RefreshCalls())
	require.True(t, f.store.Snapshot().Authenticated)
}

func TestClient_RefreshFailureClearsSession(t *testing.T) {
	const n = 4
	f := setupTestFixture(t)
	ctx := context.Background()
	f.loginByOTP(t)
	_, err := f.client.GetProfile(ctx)
	require.NoError(t, err)
	require.True(t, f.store.Snapshot().Authenticated)

	f.backend.ExpireAccessTokens()
	f.backend.RevokeRefreshTokens()

	errs := make(chan error, n)
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := f.client.GetProfile(ctx)
			errs <- err
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	close(errs)

	for err := range errs {
		require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	}
	require.False(t, f.store.Snapshot().Authenticated)
	require.GreaterOrEqual(t, f.backend.RefreshCalls(), int64(1))
}

func TestClient_RefreshUnauthorizedIsTerminal(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.Refresh(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.EqualValues(t, 1, f.backend.RefreshCalls())
}

func TestClient_Logout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	f.loginByOTP(t)
	_, err := f.client.GetProfile(ctx)
	require.NoError(t, err)

	done := f.client.Logout(ctx)
	require.False(t, f.store.Snapshot().Authenticated, "local session is cleared before the server answers")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logout request did not finish")
	}

	_, err = f.client.GetProfile(ctx)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.False(t, f.store.Snapshot().Authenticated)
}

func TestClient_LogoutIgnoresServerFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.store.SetCredentials(&sessions.Profile{ID: "u-1"})
	f.server.Close()

	<-f.client.Logout(context.Background())
	require.False(t, f.store.Snapshot().Authenticated)
}

func TestClient_ForgotAndResetPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, err := f.backend.SeedUser(mockapi.User{PhoneNumber: testPhone, Username: "ali_dev", FirstName: "Ali", LastName: "M"}, "old-secret")
	require.NoError(t, err)

	require.NoError(t, f.client.ForgotPassword(ctx, authapi.ForgotPasswordRequest{PhoneNumber: testPhone}))
	code := f.codes.Last(testPhone, mockapi.PurposeReset)
	require.NotEmpty(t, code)

	err = f.client.ResetPassword(ctx, authapi.ResetPasswordRequest{
		PhoneNumber: testPhone, Code: code, NewPassword: "new-secret", ConfirmNewPassword: "new-secret",
	})
	require.NoError(t, err)

	resp, err := f.client.LoginPassword(ctx, authapi.LoginPasswordRequest{Username: "ali_dev", Password: "new-secret"})
	require.NoError(t, err)
	require.True(t, resp.IsProfileCompleted)
}

func TestClient_TransportFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.server.Close()

	err := f.client.RequestOTP(context.Background(), authapi.RequestOTPRequest{PhoneNumber: testPhone})
	require.ErrorIs(t, err, apperrors.ErrTransport)
	require.Equal(t, authapi.GenericFailureMessage, authapi.UserMessage(err))
}

func TestClient_ServerErrorsAndMessageShapes(t *testing.T) {
	var status int
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client, err := authapi.New(configfake.New(srv.URL), sessions.NewStore())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("message list", func(t *testing.T) {
		status, body = http.StatusBadRequest, `{"message":["phoneNumber must be a string","code is required"]}`
		err := client.ForgotPassword(ctx, authapi.ForgotPasswordRequest{})
		require.ErrorIs(t, err, apperrors.ErrRejected)
		require.Equal(t, "phoneNumber must be a string; code is required", authapi.UserMessage(err))
	})

	t.Run("5xx is a transport failure with a generic message", func(t *testing.T) {
		status, body = http.StatusBadGateway, `{"message":"upstream exploded"}`
		err := client.ForgotPassword(ctx, authapi.ForgotPasswordRequest{})
		require.ErrorIs(t, err, apperrors.ErrTransport)
		require.Equal(t, authapi.GenericFailureMessage, authapi.UserMessage(err))
		require.Contains(t, err.Error(), "502")
	})

	t.Run("empty success body", func(t *testing.T) {
		status, body = http.StatusOK, ``
		_, err := client.LoginPassword(ctx, authapi.LoginPasswordRequest{Username: "a", Password: "b"})
		require.NoError(t, err)
	})

	t.Run("undecodable success body", func(t *testing.T) {
		status, body = http.StatusOK, `not json`
		_, err := client.LoginPassword(ctx, authapi.LoginPasswordRequest{Username: "a", Password: "b"})
		require.ErrorIs(t, err, apperrors.ErrTransport)
	})
}
