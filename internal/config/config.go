// Package config collects the environment-variable configuration
// Hematite reads at startup.
package config

import (
	"fmt"
	"os"
)

// Config holds the process's runtime configuration.
type Config struct {
	// StreamsDir is the root of the on-disk stream tree. Created if
	// missing.
	StreamsDir string

	// OIDCURL is the OIDC issuer base; discovery is performed at
	// <OIDCURL>/.well-known/openid-configuration.
	OIDCURL string

	// JWTAudience is the required "aud" claim on bearer tokens.
	JWTAudience string

	// Addr is the HTTP listen address.
	Addr string

	// LogDir, if set, enables rotating file logging in addition to
	// console output.
	LogDir string
}

const (
	envStreamsDir = "HEMATITE_STREAMS_DIR"
	envOIDCURL    = "HEMATITE_OIDC_URL"
	envJWTAud     = "HEMATITE_JWT_AUD"
	envAddr       = "HEMATITE_ADDR"
	envLogDir     = "HEMATITE_LOG_DIR"
)

// FromEnv reads Config from the process environment, applying defaults
// for HEMATITE_ADDR and HEMATITE_STREAMS_DIR. HEMATITE_OIDC_URL and
// HEMATITE_JWT_AUD are required.
func FromEnv() (Config, error) {
	cfg := Config{
		StreamsDir:  os.Getenv(envStreamsDir),
		OIDCURL:     os.Getenv(envOIDCURL),
		JWTAudience: os.Getenv(envJWTAud),
		Addr:        os.Getenv(envAddr),
		LogDir:      os.Getenv(envLogDir),
	}

	if cfg.StreamsDir == "" {
		cfg.StreamsDir = "./data"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.OIDCURL == "" {
		return Config{}, fmt.Errorf("config: %s is required", envOIDCURL)
	}
	if cfg.JWTAudience == "" {
		return Config{}, fmt.Errorf("config: %s is required", envJWTAud)
	}

	return cfg, nil
}
