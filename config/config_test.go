package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalYAML = `whaleflow:
  name: "TestApp"
  version: "1.0"
reader:
  timeout: 8s
storage:
  s3:
    enabled: false
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Whaleflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Whaleflow.Name)
	}
	if cfg.Reader.Timeout != 8*time.Second {
		t.Errorf("unexpected timeout: %s", cfg.Reader.Timeout)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalYAML)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("unexpected server address: %s", cfg.Server.Address)
	}
	if cfg.Whales.BatchSize != 5 {
		t.Errorf("unexpected batch size: %d", cfg.Whales.BatchSize)
	}
	if cfg.Whales.MinLeaderboardValue != 100_000 {
		t.Errorf("unexpected min leaderboard value: %f", cfg.Whales.MinLeaderboardValue)
	}
	if cfg.Whales.BatchDelay != 500*time.Millisecond {
		t.Errorf("unexpected batch delay: %s", cfg.Whales.BatchDelay)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingName(t *testing.T) {
	path := writeTempConfig(t, "whaleflow:\n  version: \"1.0\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing name")
	}
}

func TestLoadConfigRedisRequiresAddr(t *testing.T) {
	path := writeTempConfig(t, minimalYAML+`redis:
  enabled: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing redis addr")
	}
}

func TestLoadConfigRedisEnvOverride(t *testing.T) {
	t.Setenv("REDIS_ADDR", "10.0.0.1:6379")
	path := writeTempConfig(t, minimalYAML+`redis:
  enabled: true
  addr: "localhost:6379"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Redis.Addr != "10.0.0.1:6379" {
		t.Errorf("env override not applied: %s", cfg.Redis.Addr)
	}
}

func TestLoadConfigInvalidBucket(t *testing.T) {
	path := writeTempConfig(t, minimalYAML+`storage2: {}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.Storage.S3.Enabled = true
	cfg.Storage.S3.Bucket = "Bad_Bucket!"
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for invalid bucket name")
	}
}

func TestAppEnvironmentAliases(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	if got := AppEnvironment(); got != EnvironmentProduction {
		t.Errorf("unexpected environment: %s", got)
	}
	if !IsProductionLike(EnvironmentStaging) {
		t.Error("staging should be production-like")
	}
	if IsProductionLike(EnvironmentDevelopment) {
		t.Error("development should not be production-like")
	}
}
