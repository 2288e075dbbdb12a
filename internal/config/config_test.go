package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Default Output = %q, want %q", cfg.Output, "table")
	}
	if cfg.BaseDir != ".autopilotd" {
		t.Errorf("Default BaseDir = %q, want %q", cfg.BaseDir, ".autopilotd")
	}
	if cfg.Verbose {
		t.Error("Default Verbose = true, want false")
	}
	if cfg.Budget.DailyLimitSats != 10_000 {
		t.Errorf("Default Budget.DailyLimitSats = %d, want %d", cfg.Budget.DailyLimitSats, 10_000)
	}
	if cfg.Budget.PerTickLimitSats != 1_000 {
		t.Errorf("Default Budget.PerTickLimitSats = %d, want %d", cfg.Budget.PerTickLimitSats, 1_000)
	}
	if cfg.Budget.ReservedSats != 5_000 {
		t.Errorf("Default Budget.ReservedSats = %d, want %d", cfg.Budget.ReservedSats, 5_000)
	}
	if cfg.Marketplace.BidTimeout != 30*time.Second {
		t.Errorf("Default Marketplace.BidTimeout = %v, want 30s", cfg.Marketplace.BidTimeout)
	}
	if cfg.Marketplace.JobTimeout != 600*time.Second {
		t.Errorf("Default Marketplace.JobTimeout = %v, want 600s", cfg.Marketplace.JobTimeout)
	}
	if cfg.Marketplace.MaxPricePremiumPct != 20 {
		t.Errorf("Default Marketplace.MaxPricePremiumPct = %d, want 20", cfg.Marketplace.MaxPricePremiumPct)
	}
	if cfg.Supervisor.MaxConsecutiveRestarts != 3 {
		t.Errorf("Default Supervisor.MaxConsecutiveRestarts = %d, want 3", cfg.Supervisor.MaxConsecutiveRestarts)
	}
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output:  "json",
		BaseDir: "/custom/path",
	}

	result := merge(dst, src)

	if result.Output != "json" {
		t.Errorf("merged Output = %q, want %q", result.Output, "json")
	}
	if result.BaseDir != "/custom/path" {
		t.Errorf("merged BaseDir = %q, want %q", result.BaseDir, "/custom/path")
	}
	if result.Budget.DailyLimitSats != 10_000 {
		t.Errorf("merged Budget.DailyLimitSats = %d, want unchanged default 10000", result.Budget.DailyLimitSats)
	}
}

func TestMergeOverridesBudget(t *testing.T) {
	dst := Default()
	src := &Config{Budget: BudgetConfig{DailyLimitSats: 500}}

	result := merge(dst, src)

	if result.Budget.DailyLimitSats != 500 {
		t.Errorf("merged Budget.DailyLimitSats = %d, want 500", result.Budget.DailyLimitSats)
	}
	if result.Budget.PerTickLimitSats != 1_000 {
		t.Errorf("merged Budget.PerTickLimitSats = %d, want unchanged default 1000", result.Budget.PerTickLimitSats)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadFromPathValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "output: json\nbase_dir: /tmp/x\nbudget:\n  daily_limit_sats: 42\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("loadFromPath() error = %v", err)
	}
	if cfg.Output != "json" {
		t.Errorf("Output = %q, want json", cfg.Output)
	}
	if cfg.Budget.DailyLimitSats != 42 {
		t.Errorf("Budget.DailyLimitSats = %d, want 42", cfg.Budget.DailyLimitSats)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("AUTOPILOTD_OUTPUT", "yaml")
	t.Setenv("AUTOPILOTD_MAX_AGENTS", "9")

	cfg := applyEnv(Default())

	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want yaml", cfg.Output)
	}
	if cfg.Pool.MaxAgents != 9 {
		t.Errorf("Pool.MaxAgents = %d, want 9", cfg.Pool.MaxAgents)
	}
}
