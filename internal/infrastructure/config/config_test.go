package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort == "" {
		t.Error("expected default HTTP port")
	}
	if cfg.DefaultCreditLimit != "500" {
		t.Errorf("expected default credit limit 500, got %q", cfg.DefaultCreditLimit)
	}
	if cfg.SummaryCacheTTL != 30*time.Second {
		t.Errorf("expected 30s summary cache TTL, got %v", cfg.SummaryCacheTTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("DEFAULT_CREDIT_LIMIT", "1000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != "9999" {
		t.Errorf("expected port 9999, got %q", cfg.HTTPPort)
	}
	if cfg.DefaultCreditLimit != "1000" {
		t.Errorf("expected credit limit 1000, got %q", cfg.DefaultCreditLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %q", cfg.LogLevel)
	}
}
