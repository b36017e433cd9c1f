package config

import (
	"sort"
	"strings"
)

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

// List returns the origins in a stable order
func (a AllowedOrigins) List() []string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return origins
}

func (a AllowedOrigins) String() string {
	return strings.Join(a.List(), ", ")
}

func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, o := range strings.Split(GetEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() []string {
	return []string{"GET", "POST", "OPTIONS"}
}

func (Cors) GetAllowedHeaders() []string {
	return []string{"Content-Type", "X-Request-ID"}
}
