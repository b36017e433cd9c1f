package config

type Config interface {
	EnvConfig
	APIConfig
	RouteConfig
	CorsConfig
	MockConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	API
	Routes
	Cors
	Mock
}

func New() Config {
	return mainConfig{}
}
