package mockapi

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

const refreshTokenLength = 32 // 32 bytes = 256 bits

// accessClaims are carried in the access cookie
type accessClaims struct {
	Generation uint64 `json:"gen"`
	jwtlib.RegisteredClaims
}

// AccessTokens signs and verifies short-lived HS256 access tokens.
// Bumping the generation invalidates every token issued before it.
type AccessTokens struct {
	key        []byte
	expiry     time.Duration
	generation atomic.Uint64
}

func NewAccessTokens(key []byte, expiry time.Duration) *AccessTokens {
	return &AccessTokens{key: key, expiry: expiry}
}

func (a *AccessTokens) Create(userID string) (string, error) {
	now := NowTimeFunc()
	claims := accessClaims{
		Generation: a.generation.Load(),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.expiry)),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id of a valid, current-generation token
func (a *AccessTokens) Verify(token string) (string, error) {
	var claims accessClaims
	_, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (any, error) {
		return a.key, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Generation != a.generation.Load() {
		return "", fmt.Errorf("%w: superseded", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Expire invalidates every access token issued so far
func (a *AccessTokens) Expire() {
	a.generation.Add(1)
}

// StoredRefreshToken is the server-side metadata of an opaque refresh token
type StoredRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// RefreshTokens issues opaque refresh tokens, one per user, rotated on every use
type RefreshTokens struct {
	tokens  map[string]*StoredRefreshToken
	userIDs map[string]string // user ID to token
	expiry  time.Duration
	lock    sync.Mutex
}

func NewRefreshTokens(expiry time.Duration) *RefreshTokens {
	return &RefreshTokens{
		tokens:  make(map[string]*StoredRefreshToken),
		userIDs: make(map[string]string),
		expiry:  expiry,
	}
}

// Create generates a new refresh token, replacing the user's existing one
func (m *RefreshTokens) Create(userID string) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.createLocked(userID)
}

// Rotate validates token and replaces it with a fresh one for the same user
func (m *RefreshTokens) Rotate(token string) (userID, newToken string, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	rt, ok := m.tokens[token]
	if !ok {
		return "", "", ErrInvalidRefreshToken
	}
	if NowTimeFunc().Sub(rt.Iat) > m.expiry {
		m.deleteUserLocked(rt.UserID)
		return "", "", ErrRefreshTokenExpired
	}
	newToken, err = m.createLocked(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, newToken, nil
}

// Delete removes a refresh token; unknown tokens are ignored
func (m *RefreshTokens) Delete(token string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if rt, ok := m.tokens[token]; ok {
		m.deleteUserLocked(rt.UserID)
	}
}

// RevokeUser removes the user's refresh token, if any
func (m *RefreshTokens) RevokeUser(userID string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.deleteUserLocked(userID)
}

// RevokeAll removes every refresh token
func (m *RefreshTokens) RevokeAll() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tokens = make(map[string]*StoredRefreshToken)
	m.userIDs = make(map[string]string)
}

func (m *RefreshTokens) createLocked(userID string) (string, error) {
	tokenBytes := make([]byte, refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	m.deleteUserLocked(userID)
	m.tokens[tokenStr] = &StoredRefreshToken{Token: tokenStr, UserID: userID, Iat: NowTimeFunc()}
	m.userIDs[userID] = tokenStr
	return tokenStr, nil
}

func (m *RefreshTokens) deleteUserLocked(userID string) {
	if token, ok := m.userIDs[userID]; ok {
		delete(m.tokens, token)
		delete(m.userIDs, userID)
	}
}
