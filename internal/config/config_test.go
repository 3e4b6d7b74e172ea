package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"VALKEY_ADDR", "REDIS_ADDR", "POSTGRES_PORT", "SERVER_PORT",
		"PLATFORM_FEE_PERCENT", "MIN_PAYOUT_AMOUNT", "SETTLEMENT_TIMEZONE",
		"PAYMENT_GATEWAY", "INGEST_INTERVAL_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Valkey.Addr != "localhost:6379" {
		t.Errorf("Valkey.Addr = %q", cfg.Valkey.Addr)
	}
	if cfg.Server.Port != 8091 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Payout.PlatformFeePercent != 5 {
		t.Errorf("PlatformFeePercent = %v", cfg.Payout.PlatformFeePercent)
	}
	if cfg.Payout.MinPayoutAmount != 1000 {
		t.Errorf("MinPayoutAmount = %d", cfg.Payout.MinPayoutAmount)
	}
	if cfg.Payout.Timezone != "Asia/Jakarta" {
		t.Errorf("Timezone = %q", cfg.Payout.Timezone)
	}
	if cfg.Payment.Gateway != "sandbox" {
		t.Errorf("Payment.Gateway = %q", cfg.Payment.Gateway)
	}
	if cfg.Ingest.Interval != time.Minute {
		t.Errorf("Ingest.Interval = %v", cfg.Ingest.Interval)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("VALKEY_ADDR", "valkey.internal:6380")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PLATFORM_FEE_PERCENT", "7.5")
	t.Setenv("MIN_PAYOUT_AMOUNT", "2500")
	t.Setenv("PAYMENT_GATEWAY", "http")
	t.Setenv("PAYMENT_GATEWAY_BASE_URL", "https://gateway.example.com")
	t.Setenv("INGEST_INTERVAL_SECONDS", "120")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Valkey.Addr != "valkey.internal:6380" {
		t.Errorf("Valkey.Addr = %q", cfg.Valkey.Addr)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Payout.PlatformFeePercent != 7.5 {
		t.Errorf("PlatformFeePercent = %v", cfg.Payout.PlatformFeePercent)
	}
	if cfg.Payout.MinPayoutAmount != 2500 {
		t.Errorf("MinPayoutAmount = %d", cfg.Payout.MinPayoutAmount)
	}
	if cfg.Payment.Gateway != "http" {
		t.Errorf("Payment.Gateway = %q", cfg.Payment.Gateway)
	}
	if cfg.Ingest.Interval != 2*time.Minute {
		t.Errorf("Ingest.Interval = %v", cfg.Ingest.Interval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://admin.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadValkeyAddrFallsBackToRedisVar(t *testing.T) {
	t.Setenv("VALKEY_ADDR", "")
	t.Setenv("REDIS_ADDR", "redis.legacy:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Valkey.Addr != "redis.legacy:6379" {
		t.Errorf("Valkey.Addr = %q, want legacy REDIS_ADDR honored", cfg.Valkey.Addr)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "SERVER_PORT", "eighty"},
		{"bad float", "PLATFORM_FEE_PERCENT", "five"},
		{"bad bool", "OTEL_ENABLED", "maybe"},
		{"negative duration", "INGEST_INTERVAL_SECONDS", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load accepted %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestValidateRejectsFeeOutOfRange(t *testing.T) {
	t.Setenv("PLATFORM_FEE_PERCENT", "100")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PLATFORM_FEE_PERCENT") {
		t.Fatalf("err = %v, want fee validation failure", err)
	}
}

func TestValidateRejectsUnknownGateway(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "paypal")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "PAYMENT_GATEWAY") {
		t.Fatalf("err = %v, want gateway validation failure", err)
	}
}

func TestValidateRequiresHTTPGatewayURL(t *testing.T) {
	t.Setenv("PAYMENT_GATEWAY", "http")
	t.Setenv("PAYMENT_GATEWAY_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for http gateway without base URL")
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	t.Setenv("SETTLEMENT_TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresConfig{
		Host: "db.internal", Port: 5433, User: "svc", Password: "secret",
		Database: "boost", SSLMode: "require",
	}.DSN()
	want := "host=db.internal port=5433 user=svc password=secret dbname=boost sslmode=require"
	if dsn != want {
		t.Errorf("DSN = %q, want %q", dsn, want)
	}
}
