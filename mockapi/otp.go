package mockapi

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// OTPLength is the number of digits in a one-time code
const OTPLength = 5

type Purpose string

const (
	PurposeLogin Purpose = "login"
	PurposeReset Purpose = "reset"
)

// CodeSender delivers a one-time code, e.g. by SMS
type CodeSender interface {
	SendCode(phone string, purpose Purpose, code string) error
}

// CodeSenderFunc adapts a function to CodeSender
type CodeSenderFunc func(phone string, purpose Purpose, code string) error

func (f CodeSenderFunc) SendCode(phone string, purpose Purpose, code string) error {
	return f(phone, purpose, code)
}

// LogSender writes codes to the log instead of texting them
var LogSender = CodeSenderFunc(func(phone string, purpose Purpose, code string) error {
	log.Info().Str("phone", phone).Str("purpose", string(purpose)).Str("code", code).Msg("one-time code issued")
	return nil
})

// OTPStore keeps issued codes until they expire or are used
type OTPStore struct {
	mu    sync.Mutex // makes Verify's lookup and consume one step
	codes *cache.Cache
	ttl   time.Duration
}

func NewOTPStore(ttl time.Duration) *OTPStore {
	return &OTPStore{
		codes: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Issue generates and stores a fresh code, replacing any outstanding one for the same phone and purpose
func (s *OTPStore) Issue(phone string, purpose Purpose) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%0*d", OTPLength, n.Int64())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes.Set(otpKey(phone, purpose), code, s.ttl)
	return code, nil
}

// Verify consumes the code if it matches
func (s *OTPStore) Verify(phone string, purpose Purpose, code string) bool {
	key := otpKey(phone, purpose)
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.codes.Get(key)
	if !ok || stored.(string) != code {
		return false
	}
	s.codes.Delete(key)
	return true
}

func otpKey(phone string, purpose Purpose) string {
	return string(purpose) + ":" + phone
}

// CodeRecorder remembers the last code sent per phone and purpose instead of delivering it
type CodeRecorder struct {
	mu    sync.Mutex
	codes map[string]string
}

func NewCodeRecorder() *CodeRecorder {
	return &CodeRecorder{codes: make(map[string]string)}
}

func (c *CodeRecorder) SendCode(phone string, purpose Purpose, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[otpKey(phone, purpose)] = code
	return nil
}

// Last returns the most recent code sent, or "" if none
func (c *CodeRecorder) Last(phone string, purpose Purpose) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[otpKey(phone, purpose)]
}
