// Package mockapi is an in-process implementation of the session API consumed by
// authapi. It backs the integration tests and the `authflow mock-server` command.
package mockapi

import (
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jrsteele09/go-auth-flow/authapi"
	"github.com/jrsteele09/go-auth-flow/internal/config"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/auth"
)

type Server struct {
	env     string
	router  chi.Router
	users   *UserRepo
	otps    *OTPStore
	access  *AccessTokens
	refresh *RefreshTokens
	sender  CodeSender

	accessMaxAge  int
	refreshMaxAge int
	refreshCalls  atomic.Int64
}

type Option func(*Server)

// WithCodeSender replaces the default log-only code delivery
func WithCodeSender(sender CodeSender) Option {
	return func(s *Server) { s.sender = sender }
}

func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		env:           cfg.GetEnv(),
		users:         NewUserRepo(),
		otps:          NewOTPStore(cfg.GetOTPExpiry()),
		access:        NewAccessTokens(cfg.GetMockSigningKey(), cfg.GetAccessTokenExpiry()),
		refresh:       NewRefreshTokens(cfg.GetRefreshTokenExpiry()),
		sender:        LogSender,
		accessMaxAge:  int(cfg.GetRefreshTokenExpiry().Seconds()),
		refreshMaxAge: int(cfg.GetRefreshTokenExpiry().Seconds()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.initRoutes(cfg)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes(cfg config.CorsConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, s.LoggingMiddleware, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.GetAllowedOrigins().List(),
		AllowedMethods:   cfg.GetAllowedMethods(),
		AllowedHeaders:   cfg.GetAllowedHeaders(),
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/"+authapi.PathRequestOTP, s.RequestOTPHandler())
		r.Post("/"+authapi.PathLoginOTP, s.LoginOTPHandler())
		r.Post("/"+authapi.PathLoginPassword, s.LoginPasswordHandler())
		r.Post("/"+authapi.PathRefreshToken, s.RefreshTokenHandler())
		r.Post("/"+authapi.PathLogout, s.LogoutHandler())
		r.Post("/"+authapi.PathForgotPassword, s.ForgotPasswordHandler())
		r.Post("/"+authapi.PathResetPassword, s.ResetPasswordHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)
			r.Get("/"+authapi.PathMe, s.MeHandler())
			r.Post("/"+authapi.PathCompleteProfile, s.CompleteProfileHandler())
		})
	})
	return r
}

// SeedUser stores a user with the given password, for tests and demos
func (s *Server) SeedUser(u User, password string) (*User, error) {
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	return s.users.Upsert(&u)
}

// Users exposes the user store
func (s *Server) Users() *UserRepo {
	return s.users
}

// ExpireAccessTokens makes every issued access cookie answer 401, as if it had timed out
func (s *Server) ExpireAccessTokens() {
	s.access.Expire()
}

// RevokeRefreshTokens makes the next refresh-token call fail
func (s *Server) RevokeRefreshTokens() {
	s.refresh.RevokeAll()
}

// RefreshCalls counts refresh-token requests received
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}
