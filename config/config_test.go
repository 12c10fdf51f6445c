package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Engine.InitialBalance != 27 || cfg.Engine.WarmupCandles != 70 || cfg.Engine.BufferCapacity != 2000 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
	if cfg.Storage.Backend != "memory" || cfg.Server.Port != 8080 {
		t.Errorf("storage %q port %d", cfg.Storage.Backend, cfg.Server.Port)
	}
	if !cfg.Strategy.Evaluator.FeeGate.Enabled || cfg.Strategy.Periods.RSI != 21 {
		t.Errorf("strategy defaults = %+v", cfg.Strategy)
	}
	if cfg.Auth.AccessTokenDuration != 15*time.Minute {
		t.Errorf("access token duration = %v", cfg.Auth.AccessTokenDuration)
	}
}

func TestBarSeconds(t *testing.T) {
	tests := []struct {
		interval string
		want     int64
	}{
		{"1m", 60},
		{"15m", 900},
		{"4h", 14400},
		{"1d", 86400},
		{"bogus", 60},
	}

	for _, tt := range tests {
		if got := (EngineConfig{Interval: tt.interval}).BarSeconds(); got != tt.want {
			t.Errorf("BarSeconds(%q) = %d, want %d", tt.interval, got, tt.want)
		}
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := `
engine:
  symbol: ETHUSDT
  initial_balance: 100
storage:
  backend: sqlite
  sqlite_path: /tmp/engine.db
strategy:
  evaluator:
    fee_gate:
      mode: adaptive
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("ENGINE_INITIAL_BALANCE", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Symbol != "ETHUSDT" {
		t.Errorf("symbol = %q", cfg.Engine.Symbol)
	}
	if cfg.Engine.InitialBalance != 250 {
		t.Errorf("env override lost: balance = %v", cfg.Engine.InitialBalance)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.StorageOptions().SQLitePath != "/tmp/engine.db" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Strategy.Evaluator.FeeGate.Mode != "adaptive" || cfg.Strategy.Evaluator.FeeGate.FeeRate != 0.0012 {
		t.Errorf("fee gate = %+v", cfg.Strategy.Evaluator.FeeGate)
	}
	if cfg.Engine.WarmupCandles != 70 {
		t.Errorf("unset field lost its default: warmup = %d", cfg.Engine.WarmupCandles)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.json")
	if err := os.WriteFile(path, []byte(`{"storage":{"backend":"mongo"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	if _, err := Load(); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestAuthRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when auth has no secret")
	}
	cfg.Auth.JWTSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEngineSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Interval = "5m"
	cfg.Strategy.DevFlags.SkipHTFFilter = true

	ec := cfg.EngineSettings()
	if ec.BarSeconds != 300 || !ec.DevFlags.SkipHTFFilter || ec.CircuitBreaker.MaxConsecutiveLosses != 3 {
		t.Errorf("engine settings = %+v", ec)
	}
}

func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("sample does not load: %v", err)
	}
	if cfg.Auth.JWTSecret != "change-me" || len(cfg.Kafka.Brokers) != 1 {
		t.Errorf("sample round trip lost values: %+v %+v", cfg.Auth, cfg.Kafka)
	}
}
