package configfake

import (
	"time"

	"github.com/jrsteele09/go-auth-flow/internal/config"
)

var _ config.Config = (*FakeConfig)(nil)

// FakeConfig overrides the environment driven defaults for tests
type FakeConfig struct {
	config.Config
	BaseURL        string
	RequestTimeout time.Duration
	RefreshTimeout time.Duration
	AccessExpiry   time.Duration
	OTPExpiry      time.Duration
}

func New(baseURL string) *FakeConfig {
	return &FakeConfig{
		Config:         config.New(),
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		RefreshTimeout: 5 * time.Second,
		AccessExpiry:   time.Minute,
		OTPExpiry:      time.Minute,
	}
}

func (c *FakeConfig) GetBaseURL() string { return c.BaseURL }
func (c *FakeConfig) GetEnv() string { return "DEV" }
func (c *FakeConfig) GetRequestTimeout() time.Duration { return c.RequestTimeout }
func (c *FakeConfig) GetRefreshTimeout() time.Duration { return c.RefreshTimeout }
func (c *FakeConfig) GetAccessTokenExpiry() time.Duration { return c.AccessExpiry }
func (c *FakeConfig) GetOTPExpiry() time.Duration { return c.OTPExpiry }
func (c *FakeConfig) GetMockSigningKey() []byte { return []byte("test-signing-key") }
func (c *FakeConfig) GetAllowedOrigins() config.AllowedOrigins {
	return config.AllowedOrigins{"http://localhost:5173": struct{}{}}
}
