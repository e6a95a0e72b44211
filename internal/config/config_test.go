package config

import (
	"os"
	"testing"
	"time"
)

func TestDefaultsLoadWithoutAFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mc := c.ManagerConfig()
	if mc.MaxInitOpen != 8 {
		t.Fatalf("expected default MaxInitOpen 8, got %d", mc.MaxInitOpen)
	}
	if mc.MaxRetries != 3 {
		t.Fatalf("expected default MaxRetries 3, got %d", mc.MaxRetries)
	}
	if mc.HistorySize != 1024 {
		t.Fatalf("expected default HistorySize 1024, got %d", mc.HistorySize)
	}
	if mc.ActivateBase != 10*time.Second {
		t.Fatalf("expected default ActivateBase 10s, got %v", mc.ActivateBase)
	}
	if mc.PunishFactor != 0.75 {
		t.Fatalf("expected default PunishFactor 0.75, got %v", mc.PunishFactor)
	}
	if mc.RewardFactor != 1.15 {
		t.Fatalf("expected default RewardFactor 1.15, got %v", mc.RewardFactor)
	}
	if c.MetricsAddress() != ":9090" {
		t.Fatalf("expected default metrics address :9090, got %q", c.MetricsAddress())
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TUNNELMGR_MANAGER_MAX_INIT_OPEN", "4")

	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.ManagerConfig().MaxInitOpen; got != 4 {
		t.Fatalf("expected env override to set MaxInitOpen=4, got %d", got)
	}
}
