package config

import "testing"

func TestFromEnvRequiresOIDC(t *testing.T) {
	t.Setenv(envOIDCURL, "")
	t.Setenv(envJWTAud, "hematite")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error when %s is unset", envOIDCURL)
	}
}

func TestFromEnvRequiresAudience(t *testing.T) {
	t.Setenv(envOIDCURL, "https://issuer.example")
	t.Setenv(envJWTAud, "")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error when %s is unset", envJWTAud)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(envOIDCURL, "https://issuer.example")
	t.Setenv(envJWTAud, "hematite")
	t.Setenv(envStreamsDir, "")
	t.Setenv(envAddr, "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StreamsDir != "./data" {
		t.Fatalf("expected default streams dir, got %q", cfg.StreamsDir)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(envOIDCURL, "https://issuer.example")
	t.Setenv(envJWTAud, "hematite")
	t.Setenv(envStreamsDir, "/srv/streams")
	t.Setenv(envAddr, ":9090")
	t.Setenv(envLogDir, "/var/log/hematite")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StreamsDir != "/srv/streams" || cfg.Addr != ":9090" || cfg.LogDir != "/var/log/hematite" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
