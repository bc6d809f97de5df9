package main

import (
	"testing"

	"bloomtrack/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{JWTSecret: "short"}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
	if err := validateSecurityConfig(config.Config{JWTSecret: "change-me-change-me-change-me-change-me"}); err == nil {
		t.Fatalf("expected placeholder secret to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	if err := validateSecurityConfig(config.Config{JWTSecret: "0123456789abcdef0123456789abcdef"}); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
