// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port            string
	PostgresURL     string
	KafkaBrokers    []string
	JWTSecret       string
	TokenTTL        time.Duration
	APIURL          string
	EmailServiceURL string
	OTLPEndpoint    string
	MigrationsPath  string
}

// Requirement names a variable a binary cannot start without.
type Requirement string

const (
	RequirePostgres Requirement = "POSTGRES_URL"
	RequireKafka    Requirement = "KAFKA_BROKERS"
	RequireSecret   Requirement = "JWT_SECRET"
	RequireAPI      Requirement = "API_URL"
	RequireEmail    Requirement = "EMAIL_SERVICE_URL"
)

// Load reads the environment, applying defaults. Every missing required
// variable is reported in a single error.
func Load(defaultPort string, required ...Requirement) (Config, error) {
	return load(os.Getenv, defaultPort, required...)
}

func load(getenv func(string) string, defaultPort string, required ...Requirement) (Config, error) {
	cfg := Config{
		Port:            orDefault(getenv("PORT"), defaultPort),
		PostgresURL:     getenv("POSTGRES_URL"),
		KafkaBrokers:    splitList(getenv("KAFKA_BROKERS")),
		JWTSecret:       getenv("JWT_SECRET"),
		TokenTTL:        24 * time.Hour,
		APIURL:          strings.TrimRight(getenv("API_URL"), "/"),
		EmailServiceURL: strings.TrimRight(getenv("EMAIL_SERVICE_URL"), "/"),
		OTLPEndpoint:    orDefault(getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4317"),
		MigrationsPath:  orDefault(getenv("MIGRATIONS_PATH"), "file://migrations"),
	}

	var errs []error
	if raw := getenv("TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("TOKEN_TTL: %w", err))
		case ttl <= 0:
			errs = append(errs, errors.New("TOKEN_TTL must be positive"))
		default:
			cfg.TokenTTL = ttl
		}
	}

	for _, req := range required {
		if cfg.missing(req) {
			errs = append(errs, fmt.Errorf("%s environment variable is required", req))
		}
	}
	return cfg, errors.Join(errs...)
}

func (c Config) missing(req Requirement) bool {
	switch req {
	case RequirePostgres:
		return c.PostgresURL == ""
	case RequireKafka:
		return len(c.KafkaBrokers) == 0
	case RequireSecret:
		return c.JWTSecret == ""
	case RequireAPI:
		return c.APIURL == ""
	case RequireEmail:
		return c.EmailServiceURL == ""
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
