package config

import (
	"testing"
	"time"
)

func TestPasswordPolicyValidate(t *testing.T) {
	policy := PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
	}

	if err := policy.Validate("Sh0rt"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if err := policy.Validate("abcdefg1"); err == nil {
		t.Fatalf("expected error for missing uppercase")
	}
	if err := policy.Validate("ABCDEFG1"); err == nil {
		t.Fatalf("expected error for missing lowercase")
	}
	if err := policy.Validate("NoNumberHere"); err == nil {
		t.Fatalf("expected error for missing number")
	}
	if err := policy.Validate("Secur3Pass"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
}

func TestPasswordPolicyRequireSpecial(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8, RequireSpecial: true}

	if err := policy.Validate("NoSpecial1"); err == nil {
		t.Fatalf("expected error for missing special character")
	}
	if err := policy.Validate("WithSpecial1!"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "value")
	if got := getEnv("TEST_STRING", "default"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := getEnv("MISSING_STRING", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("TEST_HOURS", "48")
	if got := getHoursEnv("TEST_HOURS", 24*time.Hour); got != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", got)
	}
	t.Setenv("TEST_HOURS", "invalid")
	if got := getHoursEnv("TEST_HOURS", 24*time.Hour); got != 24*time.Hour {
		t.Fatalf("expected default duration, got %v", got)
	}
	t.Setenv("TEST_HOURS", "-1")
	if got := getHoursEnv("TEST_HOURS", 24*time.Hour); got != 24*time.Hour {
		t.Fatalf("expected default for negative hours, got %v", got)
	}

	t.Setenv("TEST_SECONDS", "10")
	if got := getSecondsEnv("TEST_SECONDS", 5*time.Second); got != 10*time.Second {
		t.Fatalf("expected 10s, got %v", got)
	}

	t.Setenv("TEST_BOOL", "true")
	if got := getBoolEnv("TEST_BOOL", false); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	t.Setenv("TEST_BOOL", "nope")
	if got := getBoolEnv("TEST_BOOL", false); got != false {
		t.Fatalf("expected default false, got %v", got)
	}

	t.Setenv("TEST_INT", "12")
	if got := getIntEnv("TEST_INT", 8); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestLoadRequiresSecretAndDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MYSQL_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is missing")
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when MYSQL_DSN is missing")
	}

	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/tasks?parseTime=true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.JWTAccessTokenTTL != 24*time.Hour {
		t.Fatalf("expected default access TTL 24h, got %v", cfg.JWTAccessTokenTTL)
	}
	if JWTRefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("expected fixed refresh TTL of 7 days")
	}
}
