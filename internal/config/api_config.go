package config

import "time"

type APIConfig interface {
	GetBaseURL() string
	GetAPIPrefix() string
	GetRequestTimeout() time.Duration
	GetRefreshTimeout() time.Duration
}

const (
	baseURLVar        = "BASE_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"
	refreshTimeoutVar = "REFRESH_TIMEOUT"
)

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns the origin serving the session API (e.g., "https://app.example.com")
func (API) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (API) GetAPIPrefix() string {
	return "/api/"
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvDuration(requestTimeoutVar, 15*time.Second)
}

// GetRefreshTimeout bounds the single shared refresh call; every queued request waits on it.
func (API) GetRefreshTimeout() time.Duration {
	return GetEnvDuration(refreshTimeoutVar, 10*time.Second)
}
