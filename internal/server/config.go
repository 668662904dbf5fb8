package server

import (
	"os"
	"strings"
	"time"
)

// Config is the process configuration read from the environment.
type Config struct {
	HTTPAddr           string
	DatabaseURL        string
	SettlementStore    string
	RedisURL           string
	RateConfigCacheTTL time.Duration
	RateDefaultsPath   string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	TenantDomains      string
	LogLevel           string
	LogFormat          string
}

func ConfigFromEnv() Config {
	return Config{
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:        DBDSNFromEnv(),
		SettlementStore:    strings.ToLower(getenvDefault("SETTLEMENT_STORE", "postgres")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		RateConfigCacheTTL: getenvDuration("RATE_CONFIG_CACHE_TTL", 10*time.Minute),
		RateDefaultsPath:   strings.TrimSpace(os.Getenv("RATE_DEFAULTS_PATH")),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		TenantDomains:      strings.TrimSpace(os.Getenv("TENANT_DOMAINS")),
		LogLevel:           strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
	}
}

func (c Config) UseMemoryStore() bool { return c.SettlementStore == "memory" }

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
