// Package config handles configuration loading and management.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestrator.
type Config struct {
	Budgets    BudgetsConfig    `mapstructure:"budgets"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Quality    QualityConfig    `mapstructure:"quality"`
	Experience ExperienceConfig `mapstructure:"experience"`
	Workers    WorkersConfig    `mapstructure:"workers"`
}

// BudgetsConfig holds spend limits in EUR.
type BudgetsConfig struct {
	// RunLimit is the default per-run budget.
	RunLimit float64 `mapstructure:"run_limit"`
	// DailyLimit is the process-wide daily cap shared by all runs.
	DailyLimit float64 `mapstructure:"daily_limit"`
	// ApprovalThreshold gates tasks whose estimate meets or exceeds it.
	ApprovalThreshold float64 `mapstructure:"approval_threshold"`
	// ApprovalTimeout bounds how long an approval request may wait.
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

// SchedulerConfig holds wave execution settings.
type SchedulerConfig struct {
	// MaxParallel bounds concurrent tasks within a wave.
	MaxParallel int `mapstructure:"max_parallel"`
	// RetryLimit is the maximum retries for a YELLOW task.
	RetryLimit int `mapstructure:"retry_limit"`
}

// QualityConfig holds verdict thresholds over the weighted score.
type QualityConfig struct {
	GreenThreshold  float64 `mapstructure:"green_threshold"`
	YellowThreshold float64 `mapstructure:"yellow_threshold"`
}

// ExperienceConfig holds the recall layer settings.
type ExperienceConfig struct {
	// Enabled toggles recall and capture entirely.
	Enabled bool `mapstructure:"enabled"`
	// DataDir is where execution records persist. Empty means in-memory.
	DataDir string `mapstructure:"data_dir"`
	// TopK is how many similar past executions to recall.
	TopK int `mapstructure:"top_k"`
	// SimilarityThreshold filters out weak matches.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// QueryTimeout bounds a recall query; recall is best-effort.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// WorkersConfig holds the worker manifest settings.
type WorkersConfig struct {
	// Manifest is the path to the worker manifest YAML.
	Manifest string `mapstructure:"manifest"`
	// Timeout is the per-task execution timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (WORKFORCE_*)
// 2. Project config (.workforce.yaml in current directory or parent)
// 3. User config (~/.config/workforce/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("WORKFORCE")
	v.AutomaticEnv()
	v.BindEnv("budgets.run_limit", "WORKFORCE_RUN_BUDGET")
	v.BindEnv("budgets.daily_limit", "WORKFORCE_DAILY_BUDGET")
	v.BindEnv("budgets.approval_threshold", "WORKFORCE_APPROVAL_THRESHOLD")
	v.BindEnv("scheduler.max_parallel", "WORKFORCE_MAX_PARALLEL")
	v.BindEnv("workers.manifest", "WORKFORCE_MANIFEST")
	v.BindEnv("experience.data_dir", "WORKFORCE_DATA_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Workers.Manifest = os.ExpandEnv(cfg.Workers.Manifest)
	cfg.Experience.DataDir = os.ExpandEnv(cfg.Experience.DataDir)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Workers.Manifest = os.ExpandEnv(cfg.Workers.Manifest)
	cfg.Experience.DataDir = os.ExpandEnv(cfg.Experience.DataDir)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("budgets.run_limit", cfg.Budgets.RunLimit)
	v.Set("budgets.daily_limit", cfg.Budgets.DailyLimit)
	v.Set("budgets.approval_threshold", cfg.Budgets.ApprovalThreshold)
	v.Set("budgets.approval_timeout", cfg.Budgets.ApprovalTimeout.String())
	v.Set("scheduler.max_parallel", cfg.Scheduler.MaxParallel)
	v.Set("scheduler.retry_limit", cfg.Scheduler.RetryLimit)
	v.Set("quality.green_threshold", cfg.Quality.GreenThreshold)
	v.Set("quality.yellow_threshold", cfg.Quality.YellowThreshold)
	v.Set("experience.enabled", cfg.Experience.Enabled)
	v.Set("experience.data_dir", cfg.Experience.DataDir)
	v.Set("experience.top_k", cfg.Experience.TopK)
	v.Set("experience.similarity_threshold", cfg.Experience.SimilarityThreshold)
	v.Set("experience.query_timeout", cfg.Experience.QueryTimeout.String())
	v.Set("workers.manifest", cfg.Workers.Manifest)
	v.Set("workers.timeout", cfg.Workers.Timeout.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("budgets.run_limit", 25.0)
	v.SetDefault("budgets.daily_limit", 100.0)
	v.SetDefault("budgets.approval_threshold", 50.0)
	v.SetDefault("budgets.approval_timeout", "5m")

	v.SetDefault("scheduler.max_parallel", 4)
	v.SetDefault("scheduler.retry_limit", 2)

	v.SetDefault("quality.green_threshold", 0.90)
	v.SetDefault("quality.yellow_threshold", 0.70)

	v.SetDefault("experience.enabled", true)
	v.SetDefault("experience.data_dir", "")
	v.SetDefault("experience.top_k", 5)
	v.SetDefault("experience.similarity_threshold", 0.8)
	v.SetDefault("experience.query_timeout", "2s")

	v.SetDefault("workers.manifest", "workers.yaml")
	v.SetDefault("workers.timeout", "30m")
}

// getUserConfigDir returns the XDG config directory.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "workforce")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "workforce")
	}
	return filepath.Join(home, ".config", "workforce")
}

// findProjectConfig searches for .workforce.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".workforce.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Budgets: BudgetsConfig{
			RunLimit:          25,
			DailyLimit:        100,
			ApprovalThreshold: 50,
			ApprovalTimeout:   5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			MaxParallel: 4,
			RetryLimit:  2,
		},
		Quality: QualityConfig{
			GreenThreshold:  0.90,
			YellowThreshold: 0.70,
		},
		Experience: ExperienceConfig{
			Enabled:             true,
			TopK:                5,
			SimilarityThreshold: 0.8,
			QueryTimeout:        2 * time.Second,
		},
		Workers: WorkersConfig{
			Manifest: "workers.yaml",
			Timeout:  30 * time.Minute,
		},
	}
}
