package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const defaultPort = "8080"
const defaultCacheTTL = 1 * time.Minute

type Config struct {
	port           string
	sentryDSN      string
	upstreamURL    string
	upstreamAPIKey string
	cacheTTL       time.Duration
	env            environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) UpstreamURL() string {
	return c.upstreamURL
}

func (c *Config) UpstreamAPIKey() string {
	return c.upstreamAPIKey
}

func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, port: %s, cacheTTL: %s, ...}", string(c.env), c.port, c.cacheTTL)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("STAMPEDE_ENVIRONMENT")
	if !ok {
		return missingKey("STAMPEDE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: STAMPEDE_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	cacheTTL := defaultCacheTTL
	if rawCacheTTL := os.Getenv("CACHE_TTL"); rawCacheTTL != "" {
		parsed, err := time.ParseDuration(rawCacheTTL)
		if err != nil {
			return Config{}, fmt.Errorf("%w: CACHE_TTL (%s)", ErrInvalidValue, rawCacheTTL)
		}
		cacheTTL = parsed
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	upstreamURL := os.Getenv("UPSTREAM_URL")
	upstreamAPIKey := os.Getenv("UPSTREAM_API_KEY")

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if upstreamURL == "" {
			return missingKey("UPSTREAM_URL")
		}
	}

	return Config{
		port:           port,
		sentryDSN:      sentryDSN,
		upstreamURL:    upstreamURL,
		upstreamAPIKey: upstreamAPIKey,
		cacheTTL:       cacheTTL,
		env:            env,
	}, nil
}
