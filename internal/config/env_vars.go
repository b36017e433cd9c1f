package config

import (
	"os"
	"time"
)

const (
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	logLevelVar = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Chilla Auth")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration string, falling back to defaultValue when unset or malformed.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
