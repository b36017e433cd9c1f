package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-flow/gate"
	"github.com/jrsteele09/go-auth-flow/internal/config"
	"github.com/jrsteele09/go-auth-flow/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

const (
	headerRequestID = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Client is the typed session API. Every operation except Refresh runs through the
// session gate, so an expired session is renewed once and the call replayed.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	store   *sessions.Store
	gate    *gate.Gate
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. A cookie jar is attached if it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(cfg config.APIConfig, store *sessions.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.GetBaseURL(), "/") + cfg.GetAPIPrefix())
	if err != nil {
		return nil, fmt.Errorf("[authapi New] invalid base url: %w", err)
	}

	c := &Client{
		baseURL: base,
		http:    &http.Client{},
		store:   store,
		timeout: cfg.GetRequestTimeout(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("[authapi New] failed to create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}

	c.gate = gate.New(
		func(ctx context.Context) error {
			_, err := c.Refresh(ctx)
			return err
		},
		gate.WithOnExpired(store.Clear),
		gate.WithRefreshTimeout(cfg.GetRefreshTimeout()),
	)
	return c, nil
}

// Gate exposes the session gate, mainly for inspection
func (c *Client) Gate() *gate.Gate {
	return c.gate
}

// RequestOTP asks the server to text a one-time code to the phone number
func (c *Client) RequestOTP(ctx context.Context, req RequestOTPRequest) error {
	return c.call(ctx, http.MethodPost, PathRequestOTP, req, nil)
}

func (c *Client) LoginOTP(ctx context.Context, req LoginOTPRequest) (LoginResponse, error) {
	var resp LoginResponse
	err := c.call(ctx, http.MethodPost, PathLoginOTP, req, &resp)
	return resp, err
}

func (c *Client) LoginPassword(ctx context.Context, req LoginPasswordRequest) (LoginResponse, error) {
	var resp LoginResponse
	err := c.call(ctx, http.MethodPost, PathLoginPassword, req, &resp)
	return resp, err
}

// Refresh renews the session cookies. It bypasses the gate: a 401 here is terminal.
func (c *Client) Refresh(ctx context.Context) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, PathRefreshToken, nil, &resp)
	return resp, err
}

func (c *Client) CompleteProfile(ctx context.Context, req CompleteProfileRequest) error {
	return c.call(ctx, http.MethodPost, PathCompleteProfile, req, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	return c.call(ctx, http.MethodPost, PathForgotPassword, req, nil)
}

func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	return c.call(ctx, http.MethodPost, PathResetPassword, req, nil)
}

// GetProfile fetches the current user. On success it is the one place that writes the profile into the session.
func (c *Client) GetProfile(ctx context.Context) (*sessions.Profile, error) {
	var p sessions.Profile
	if err := c.call(ctx, http.MethodGet, PathMe, nil, &p); err != nil {
		return nil, err
	}
	c.store.SetCredentials(&p)
	return &p, nil
}

// Logout clears the local session immediately and tells the server in the background.
// The server call's outcome is only logged; the returned channel closes when it finishes.
func (c *Client) Logout(ctx context.Context) <-chan struct{} {
	c.store.Clear()

	done := make(chan struct{})
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		if err := c.do(bg, http.MethodPost, PathLogout, nil, nil); err != nil {
			log.Debug().Err(err).Msg("logout request failed, local session already cleared")
		}
	}()
	return done
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	return c.gate.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, path, in, out)
	})
}

// do performs exactly one HTTP exchange
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", path, err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("request_id", requestID).Str("path", path).Msg("request failed")
		return &APIError{Op: path, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(path, resp.StatusCode, b)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: path, Status: resp.StatusCode, Kind: KindTransport, Err: err}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return &APIError{Op: path, Status: resp.StatusCode, Kind: KindTransport, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
