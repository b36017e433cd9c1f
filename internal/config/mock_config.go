package config

import "time"

// MockConfig drives the in-process session API used for demos and tests
type MockConfig interface {
	GetMockAddr() string
	GetMockSigningKey() []byte
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetOTPExpiry() time.Duration
}

type Mock struct{}

var _ MockConfig = Mock{}

func (Mock) GetMockAddr() string {
	return GetEnv("MOCK_ADDR", ":8080")
}

func (Mock) GetMockSigningKey() []byte {
	return []byte(GetEnv("MOCK_SIGNING_KEY", "dev-only-signing-key-change-me"))
}

func (Mock) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 1*time.Minute)
}

func (Mock) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour) // 7 days
}

func (Mock) GetOTPExpiry() time.Duration {
	return GetEnvDuration("OTP_EXPIRY", 2*time.Minute)
}
