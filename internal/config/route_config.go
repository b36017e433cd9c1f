package config

type RouteConfig interface {
	GetLoginPath() string
	GetLandingPath() string
}

type Routes struct{}

var _ RouteConfig = Routes{}

func (Routes) GetLoginPath() string {
	return "/auth/login"
}

// GetLandingPath is where authenticated users land when no return target was recorded
func (Routes) GetLandingPath() string {
	return GetEnv("LANDING_PATH", "/dashboard")
}
