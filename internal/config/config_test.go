package config

import "testing"

func TestLoadDoesNotInjectWeakSecretDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty JWT_SECRET when unset, got %q", cfg.JWTSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL_HOURS", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "bogus")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.TokenTTLHours != 168 {
		t.Fatalf("expected default token ttl 168h, got %d", cfg.TokenTTLHours)
	}
	if cfg.ReportCacheTTLSeconds != 15 {
		t.Fatalf("expected fallback report ttl 15s on invalid input, got %d", cfg.ReportCacheTTLSeconds)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}
