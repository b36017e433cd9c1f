package mockapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/internal/config/configfake"
	"github.com/jrsteele09/go-auth-flow/mockapi"
	"github.com/stretchr/testify/require"
)

const testPhone = "09123456789"

type testFixture struct {
	backend *mockapi.Server
	codes   *mockapi.CodeRecorder
	server  *httptest.Server
	client  *http.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	codes := mockapi.NewCodeRecorder()
	backend := mockapi.New(configfake.New(""), mockapi.WithCodeSender(codes))
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testFixture{backend: backend, codes: codes, server: server, client: &http.Client{Jar: jar}}
}

func (f *testFixture) send(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, f.server.URL+"/api/"+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (f *testFixture) login(t *testing.T) map[string]any {
	t.Helper()
	status, _ := f.send(t, http.MethodPost, authapi.PathRequestOTP, authapi.RequestOTPRequest{PhoneNumber: testPhone})
	require.Equal(t, http.StatusOK, status)

	code := f.codes.Last(testPhone, mockapi.PurposeLogin)
	status, body := f.send(t, http.MethodPost, authapi.PathLoginOTP, authapi.LoginOTPRequest{PhoneNumber: testPhone, Code: code})
	require.Equal(t, http.StatusOK, status)
	return body
}

func TestServer_OTPLoginRegistersUnknownNumber(t *testing.T) {
	f := setupTestFixture(t)

	body := f.login(t)
	require.Equal(t, false, body["isProfileCompleted"])

	user, err := f.backend.Users().GetByPhone(testPhone)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.False(t, user.LastLogin.IsZero())

	status, me := f.send(t, http.MethodGet, authapi.PathMe, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, user.ID, me["id"])
	require.NotContains(t, me, "passwordHash")
}

func TestServer_Rejections(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("invalid body", func(t *testing.T) {
		status, body := f.send(t, http.MethodPost, authapi.PathRequestOTP, "{")
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid request body", body["message"])
	})

	t.Run("invalid phone", func(t *testing.T) {
		status, body := f.send(t, http.MethodPost, authapi.PathRequestOTP, authapi.RequestOTPRequest{PhoneNumber: "0912"})
		require.Equal(t, http.StatusBadRequest, status)
		require.EqualValues(t, http.StatusBadRequest, body["statusCode"])
	})

	t.Run("me without a session", func(t *testing.T) {
		status, _ := f.send(t, http.MethodGet, authapi.PathMe, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("refresh without a cookie", func(t *testing.T) {
		status, _ := f.send(t, http.MethodPost, authapi.PathRefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, status)
		require.EqualValues(t, 1, f.backend.RefreshCalls())
	})

	t.Run("unknown username", func(t *testing.T) {
		status, body := f.send(t, http.MethodPost, authapi.PathLoginPassword, authapi.LoginPasswordRequest{Username: "ghost", Password: "secret1"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid username or password", body["message"])
	})
}

func TestServer_RefreshRotatesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	f.backend.ExpireAccessTokens()
	status, _ := f.send(t, http.MethodGet, authapi.PathMe, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.send(t, http.MethodPost, authapi.PathRefreshToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.send(t, http.MethodGet, authapi.PathMe, nil)
	require.Equal(t, http.StatusOK, status)

	t.Run("revoked refresh token", func(t *testing.T) {
		f.backend.RevokeRefreshTokens()
		status, _ := f.send(t, http.MethodPost, authapi.PathRefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestServer_CompleteProfile(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	t.Run("invalid email", func(t *testing.T) {
		status, body := f.send(t, http.MethodPost, authapi.PathCompleteProfile, map[string]string{"email": "not-an-email"})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Invalid email address", body["message"])
	})

	t.Run("short password", func(t *testing.T) {
		status, _ := f.send(t, http.MethodPost, authapi.PathCompleteProfile, map[string]string{"password": "123"})
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("complete", func(t *testing.T) {
		status, _ := f.send(t, http.MethodPost, authapi.PathCompleteProfile, map[string]string{
			"firstName": "Sara",
			"lastName":  "Karimi",
			"username":  "sara_k",
			"email":     "sara@example.com",
			"password":  "secret1",
		})
		require.Equal(t, http.StatusOK, status)

		user, err := f.backend.Users().GetByUsername("sara_k")
		require.NoError(t, err)
		require.True(t, user.IsProfileCompleted())
		require.True(t, mockapi.CheckPasswordHash("secret1", user.PasswordHash))
	})
}

func TestServer_LogoutEndsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	status, _ := f.send(t, http.MethodPost, authapi.PathLogout, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = f.send(t, http.MethodGet, authapi.PathMe, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = f.send(t, http.MethodPost, authapi.PathRefreshToken, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestServer_PasswordReset(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.backend.SeedUser(mockapi.User{PhoneNumber: testPhone, Username: "reza", FirstName: "Reza", LastName: "A"}, "old-secret")
	require.NoError(t, err)

	t.Run("unknown number still answers ok", func(t *testing.T) {
		status, _ := f.send(t, http.MethodPost, authapi.PathForgotPassword, authapi.ForgotPasswordRequest{PhoneNumber: "09990000000"})
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, f.codes.Last("09990000000", mockapi.PurposeReset))
	})

	status, _ := f.send(t, http.MethodPost, authapi.PathForgotPassword, authapi.ForgotPasswordRequest{PhoneNumber: testPhone})
	require.Equal(t, http.StatusOK, status)
	code := f.codes.Last(testPhone, mockapi.PurposeReset)
	require.Len(t, code, mockapi.OTPLength)

	t.Run("mismatch", func(t *testing.T) {
		status, body := f.send(t, http.MethodPost, authapi.PathResetPassword, authapi.ResetPasswordRequest{
			PhoneNumber: testPhone, Code: code, NewPassword: "secret1", ConfirmNewPassword: "secret2",
		})
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "Passwords do not match", body["message"])
	})

	t.Run("login code is not a reset code", func(t *testing.T) {
		status, _ := f.send(t, http.MethodPost, authapi.PathRequestOTP, authapi.RequestOTPRequest{PhoneNumber: testPhone})
		require.Equal(t, http.StatusOK, status)
		loginCode := f.codes.Last(testPhone, mockapi.PurposeLogin)
		if loginCode == code {
			t.Skip("codes collided")
		}
		status, _ = f.send(t, http.MethodPost, authapi.PathResetPassword, authapi.ResetPasswordRequest{
			PhoneNumber: testPhone, Code: loginCode, NewPassword: "secret1", ConfirmNewPassword: "secret1",
		})
		require.Equal(t, http.StatusBadRequest, status)
	})

	status, _ = f.send(t, http.MethodPost, authapi.PathResetPassword, authapi.ResetPasswordRequest{
		PhoneNumber: testPhone, Code: code, NewPassword: "secret1", ConfirmNewPassword: "secret1",
	})
	require.Equal(t, http.StatusOK, status)

	user, err := f.backend.Users().GetByPhone(testPhone)
	require.NoError(t, err)
	require.True(t, mockapi.CheckPasswordHash("secret1", user.PasswordHash))
}

func TestServer_CORSPreflight(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/"+authapi.PathLoginOTP, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.True(t, strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost))
}
