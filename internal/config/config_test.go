package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_TYPE", "")
	t.Setenv("CLUSTER_MODE", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseType != "sqlite" {
		t.Errorf("DatabaseType = %q, want sqlite", cfg.DatabaseType)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
	if cfg.ClusterMode != "greedy" {
		t.Errorf("ClusterMode = %q, want greedy", cfg.ClusterMode)
	}
}

func TestLoadRejectsUnknownClusterMode(t *testing.T) {
	t.Setenv("CLUSTER_MODE", "kmeans")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown cluster mode")
	}
}

func TestLoadRejectsNegativeRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative rate limit")
	}
}

func TestRequireServerSecrets(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireServerSecrets(); err == nil {
		t.Fatal("expected error without JWT secret")
	}
	cfg.JWTSecret = "s3cret"
	if err := cfg.RequireServerSecrets(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.in}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
