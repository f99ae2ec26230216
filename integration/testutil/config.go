//go:build integration

package testutil

// ServiceAddresses holds addresses for the services used in tests
type ServiceAddresses struct {
	API      string
	Debug    string
	RedisURL string
}

// DefaultAddresses returns default service addresses for local Docker testing
func DefaultAddresses() ServiceAddresses {
	return ServiceAddresses{
		API:      GetEnv("ZAPSTATS_API_ADDR", "localhost:8080"),
		Debug:    GetEnv("ZAPSTATS_DEBUG_ADDR", "localhost:8085"),
		RedisURL: GetEnv("REDIS_URL", "redis://localhost:6379/0"),
	}
}

// Addrs is a global instance of ServiceAddresses for convenience
var Addrs = DefaultAddresses()
