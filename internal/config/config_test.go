package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Budgets.RunLimit != 25 {
		t.Errorf("expected default run limit 25, got %v", cfg.Budgets.RunLimit)
	}

	if cfg.Budgets.DailyLimit != 100 {
		t.Errorf("expected default daily limit 100, got %v", cfg.Budgets.DailyLimit)
	}

	if cfg.Budgets.ApprovalThreshold != 50 {
		t.Errorf("expected approval threshold 50, got %v", cfg.Budgets.ApprovalThreshold)
	}

	if cfg.Scheduler.MaxParallel != 4 {
		t.Errorf("expected max parallel 4, got %d", cfg.Scheduler.MaxParallel)
	}

	if cfg.Scheduler.RetryLimit != 2 {
		t.Errorf("expected retry limit 2, got %d", cfg.Scheduler.RetryLimit)
	}

	if cfg.Quality.GreenThreshold != 0.90 {
		t.Errorf("expected green threshold 0.90, got %v", cfg.Quality.GreenThreshold)
	}

	if cfg.Quality.YellowThreshold != 0.70 {
		t.Errorf("expected yellow threshold 0.70, got %v", cfg.Quality.YellowThreshold)
	}

	if !cfg.Experience.Enabled {
		t.Error("expected experience recall enabled by default")
	}

	if cfg.Experience.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Experience.TopK)
	}

	if cfg.Experience.SimilarityThreshold != 0.8 {
		t.Errorf("expected similarity threshold 0.8, got %v", cfg.Experience.SimilarityThreshold)
	}

	if cfg.Workers.Timeout != 30*time.Minute {
		t.Errorf("expected worker timeout 30m, got %v", cfg.Workers.Timeout)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
budgets:
  run_limit: 40
  approval_threshold: 75
scheduler:
  max_parallel: 2
workers:
  manifest: team.yaml
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Budgets.RunLimit != 40 {
		t.Errorf("run limit = %v, want 40", cfg.Budgets.RunLimit)
	}
	if cfg.Budgets.ApprovalThreshold != 75 {
		t.Errorf("approval threshold = %v, want 75", cfg.Budgets.ApprovalThreshold)
	}
	if cfg.Scheduler.MaxParallel != 2 {
		t.Errorf("max parallel = %d, want 2", cfg.Scheduler.MaxParallel)
	}
	if cfg.Workers.Manifest != "team.yaml" {
		t.Errorf("manifest = %q, want team.yaml", cfg.Workers.Manifest)
	}

	// Unset keys keep their defaults.
	if cfg.Budgets.DailyLimit != 100 {
		t.Errorf("daily limit = %v, want default 100", cfg.Budgets.DailyLimit)
	}
	if cfg.Scheduler.RetryLimit != 2 {
		t.Errorf("retry limit = %d, want default 2", cfg.Scheduler.RetryLimit)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Budgets.RunLimit = 60
	cfg.Experience.TopK = 3

	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Budgets.RunLimit != 60 {
		t.Errorf("run limit = %v, want 60", loaded.Budgets.RunLimit)
	}
	if loaded.Experience.TopK != 3 {
		t.Errorf("top_k = %d, want 3", loaded.Experience.TopK)
	}
}
