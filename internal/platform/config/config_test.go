package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SANDBOX_TIMEOUT", "")
	t.Setenv("CONTEST_SCAN_INTERVAL", "")

	Load()

	if AppConfig.SandboxTimeout != 10*time.Second {
		t.Fatalf("SandboxTimeout = %v, want 10s", AppConfig.SandboxTimeout)
	}
	if AppConfig.ContestScanInterval != 10*time.Second {
		t.Fatalf("ContestScanInterval = %v, want 10s", AppConfig.ContestScanInterval)
	}
	if AppConfig.PendingTTL != time.Hour {
		t.Fatalf("PendingTTL = %v, want 1h", AppConfig.PendingTTL)
	}
	if AppConfig.PendingSweepInterval != 5*time.Minute {
		t.Fatalf("PendingSweepInterval = %v, want 5m", AppConfig.PendingSweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SANDBOX_TIMEOUT", "3s")
	t.Setenv("REDIS_DB", "4")
	t.Setenv("PENDING_STORE", "redis")

	Load()

	if AppConfig.SandboxTimeout != 3*time.Second {
		t.Fatalf("SandboxTimeout = %v, want 3s", AppConfig.SandboxTimeout)
	}
	if AppConfig.RedisDB != 4 {
		t.Fatalf("RedisDB = %d, want 4", AppConfig.RedisDB)
	}
	if AppConfig.PendingStore != "redis" {
		t.Fatalf("PendingStore = %q, want redis", AppConfig.PendingStore)
	}
}

func TestGetEnvAsDurationRejectsGarbage(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	if got := getEnvAsDuration("SOME_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("getEnvAsDuration = %v, want fallback", got)
	}
}
