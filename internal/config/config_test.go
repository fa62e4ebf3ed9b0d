package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
worker:
  sweep_interval: 0s
remote:
  limits:
    free_likes_per_day: 99
    plus_active_chats: 5
  surfacing:
    max_visible: 4
    immediate_first: false
  consent:
    decision_window: 24h
  admission:
    activation_cost_cents: 0
  contact:
    extra_keywords: [kik]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Remote.Limits.FreeLikesPerDay != 99 {
		t.Fatalf("unexpected free likes/day: %d", cfg.Remote.Limits.FreeLikesPerDay)
	}
	if cfg.Remote.Limits.PlusActiveChats != 5 {
		t.Fatalf("unexpected plus active chats: %d", cfg.Remote.Limits.PlusActiveChats)
	}
	if cfg.Remote.Surfacing.MaxVisible != 4 || cfg.Remote.Surfacing.ImmediateFirst {
		t.Fatalf("unexpected surfacing overrides: %+v", cfg.Remote.Surfacing)
	}
	if cfg.Remote.Consent.DecisionWindow != 24*time.Hour {
		t.Fatalf("unexpected decision window: %s", cfg.Remote.Consent.DecisionWindow)
	}
	if cfg.Remote.Admission.ActivationCostCents != 0 {
		t.Fatalf("unexpected activation cost: %d", cfg.Remote.Admission.ActivationCostCents)
	}
	if len(cfg.Remote.Contact.ExtraKeywords) != 1 || cfg.Remote.Contact.ExtraKeywords[0] != "kik" {
		t.Fatalf("unexpected extra keywords: %v", cfg.Remote.Contact.ExtraKeywords)
	}
	if cfg.Worker.SweepInterval != 0 {
		t.Fatalf("sweep interval zero must disable the sweep, got %s", cfg.Worker.SweepInterval)
	}

	if cfg.Remote.Limits.BaseActiveChats != 1 {
		t.Fatalf("base_active_chats default should stay 1")
	}
	if cfg.Remote.Surfacing.DailyQuota != 10 {
		t.Fatalf("surfacing daily_quota default should stay 10")
	}
	if cfg.Remote.Contact.PatternsVersion != "v1" {
		t.Fatalf("contact patterns_version default should stay v1")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.Remote.Limits.FreeLikesPerDay != 35 {
		t.Fatalf("unexpected default free likes/day: %d", cfg.Remote.Limits.FreeLikesPerDay)
	}
	if cfg.Remote.Limits.LikesPerMinute != 30 {
		t.Fatalf("unexpected default likes/minute: %d", cfg.Remote.Limits.LikesPerMinute)
	}
	if cfg.Remote.Consent.DecisionWindow != 48*time.Hour {
		t.Fatalf("unexpected default decision window: %s", cfg.Remote.Consent.DecisionWindow)
	}
	if cfg.Remote.Surfacing.VisibleTTL != 72*time.Hour {
		t.Fatalf("unexpected default visible ttl: %s", cfg.Remote.Surfacing.VisibleTTL)
	}
	if cfg.Presence.Debounce != time.Minute {
		t.Fatalf("unexpected default presence debounce: %s", cfg.Presence.Debounce)
	}
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("ACTIVATION_COST_CENTS", "250")
	t.Setenv("S3_REGION", "eu-central-1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Worker.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected sweep interval: %s", cfg.Worker.SweepInterval)
	}
	if cfg.Remote.Admission.ActivationCostCents != 250 {
		t.Fatalf("unexpected activation cost: %d", cfg.Remote.Admission.ActivationCostCents)
	}
	if cfg.S3.Region != "eu-central-1" {
		t.Fatalf("unexpected s3 region: %s", cfg.S3.Region)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ACTIVATION_COST_CENTS", "ten")

	if _, err := Load(""); err == nil {
		t.Fatal("expected parse error for ACTIVATION_COST_CENTS")
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "prod")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error when jwt secret is the default in production")
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_REGION",
		"S3_USE_SSL",
		"JWT_SECRET",
		"JWT_ISSUER",
		"JWT_ACCESS_TTL",
		"SESSION_TTL",
		"BOT_TOKEN",
		"SWEEP_INTERVAL",
		"WORKER_METRICS_ADDR",
		"ACTIVATION_COST_CENTS",
		"CONTACT_PATTERNS_VERSION",
	} {
		t.Setenv(key, "")
	}
}
