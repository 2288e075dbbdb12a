// Package config provides configuration management for autopilotd.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (AUTOPILOTD_*)
// 3. Project config (.autopilotd/config.yaml in cwd)
// 4. Home config (~/.autopilotd/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all autopilotd configuration.
type Config struct {
	// Output controls the default output format (table, json, yaml).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the autopilotd data directory (default: .autopilotd).
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Verbose enables verbose logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	Supervisor  SupervisorConfig  `yaml:"supervisor" json:"supervisor"`
	Pool        PoolConfig        `yaml:"pool" json:"pool"`
	Budget      BudgetConfig      `yaml:"budget" json:"budget"`
	Marketplace MarketplaceConfig `yaml:"marketplace" json:"marketplace"`
	Trajectory  TrajectoryConfig  `yaml:"trajectory" json:"trajectory"`
}

// SupervisorConfig configures the worker supervisor (spec.md §4.1).
type SupervisorConfig struct {
	// Command is the worker binary to spawn.
	Command string `yaml:"command" json:"command"`
	// Args are extra argv entries placed before the fixed child-process
	// interface entries (model, max-budget, max-turns, ...).
	Args []string `yaml:"args" json:"args"`
	// Model identifies the model endpoint passed to the worker.
	Model string `yaml:"model" json:"model"`
	// MaxBudgetSats bounds the worker's per-run spend.
	MaxBudgetSats uint64 `yaml:"max_budget_sats" json:"max_budget_sats"`
	// MaxTurns bounds the worker's conversation turns.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`
	// ProjectPath is an optional working directory for the worker.
	ProjectPath string `yaml:"project_path" json:"project_path"`

	PollInterval           time.Duration `yaml:"poll_interval" json:"poll_interval"`
	SuccessThreshold       time.Duration `yaml:"success_threshold" json:"success_threshold"`
	BackoffStart           time.Duration `yaml:"backoff_start" json:"backoff_start"`
	BackoffMultiplier      float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxBackoff             time.Duration `yaml:"max_backoff" json:"max_backoff"`
	MaxConsecutiveRestarts int           `yaml:"max_consecutive_restarts" json:"max_consecutive_restarts"`
	GracefulStopWindow     time.Duration `yaml:"graceful_stop_window" json:"graceful_stop_window"`

	MemoryLowThresholdBytes      uint64 `yaml:"memory_low_threshold_bytes" json:"memory_low_threshold_bytes"`
	MemoryCriticalThresholdBytes uint64 `yaml:"memory_critical_threshold_bytes" json:"memory_critical_threshold_bytes"`
}

// PoolConfig configures the agent pool (spec.md §4.2).
type PoolConfig struct {
	MaxAgents int `yaml:"max_agents" json:"max_agents"`
}

// BudgetConfig configures the budget ledger (spec.md §4.4).
type BudgetConfig struct {
	DailyLimitSats  uint64 `yaml:"daily_limit_sats" json:"daily_limit_sats"`
	PerTickLimitSats uint64 `yaml:"per_tick_limit_sats" json:"per_tick_limit_sats"`
	ReservedSats    uint64 `yaml:"reserved_sats" json:"reserved_sats"`
}

// MarketplaceConfig configures the compute marketplace client (spec.md §4.3).
type MarketplaceConfig struct {
	BidTimeout         time.Duration `yaml:"bid_timeout" json:"bid_timeout"`
	JobTimeout         time.Duration `yaml:"job_timeout" json:"job_timeout"`
	Strategy           string        `yaml:"strategy" json:"strategy"`
	MaxPricePremiumPct uint64        `yaml:"max_price_premium_pct" json:"max_price_premium_pct"`
	PreferredRelays    []string      `yaml:"preferred_relays" json:"preferred_relays"`

	MaxConnectionsPerEndpoint int           `yaml:"max_connections_per_endpoint" json:"max_connections_per_endpoint"`
	ConnectionIdleTimeout     time.Duration `yaml:"connection_idle_timeout" json:"connection_idle_timeout"`
	ConnectionCleanupInterval time.Duration `yaml:"connection_cleanup_interval" json:"connection_cleanup_interval"`
	CircuitFailureThreshold   int           `yaml:"circuit_failure_threshold" json:"circuit_failure_threshold"`
	CircuitHalfOpenProbes     int           `yaml:"circuit_half_open_probes" json:"circuit_half_open_probes"`
	CircuitCooldown           time.Duration `yaml:"circuit_cooldown" json:"circuit_cooldown"`
}

// TrajectoryConfig configures the trajectory tracker (spec.md §4.4).
type TrajectoryConfig struct {
	WindowSize time.Duration `yaml:"window_size" json:"window_size"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  "table",
		BaseDir: ".autopilotd",
		Verbose: false,
		Supervisor: SupervisorConfig{
			Command:                      "autopilot-worker",
			Model:                        "default",
			MaxBudgetSats:                10_000,
			MaxTurns:                     50,
			PollInterval:                 2 * time.Second,
			SuccessThreshold:             1 * time.Second,
			BackoffStart:                 100 * time.Millisecond,
			BackoffMultiplier:            2.0,
			MaxBackoff:                   5 * time.Second,
			MaxConsecutiveRestarts:       3,
			GracefulStopWindow:           5 * time.Second,
			MemoryLowThresholdBytes:      512 * 1024 * 1024,
			MemoryCriticalThresholdBytes: 128 * 1024 * 1024,
		},
		Pool: PoolConfig{
			MaxAgents: 4,
		},
		Budget: BudgetConfig{
			DailyLimitSats:   10_000,
			PerTickLimitSats: 1_000,
			ReservedSats:     5_000,
		},
		Marketplace: MarketplaceConfig{
			BidTimeout:                30 * time.Second,
			JobTimeout:                600 * time.Second,
			Strategy:                  "lowest_price",
			MaxPricePremiumPct:        20,
			PreferredRelays:           []string{"wss://relay.damus.io", "wss://relay.nostr.band", "wss://nos.lol"},
			MaxConnectionsPerEndpoint: 5,
			ConnectionIdleTimeout:     300 * time.Second,
			ConnectionCleanupInterval: 60 * time.Second,
			CircuitFailureThreshold:   5,
			CircuitHalfOpenProbes:     2,
			CircuitCooldown:           30 * time.Second,
		},
		Trajectory: TrajectoryConfig{
			WindowSize: 1 * time.Minute,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".autopilotd", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("AUTOPILOTD_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".autopilotd", "config.yaml")
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("AUTOPILOTD_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("AUTOPILOTD_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("AUTOPILOTD_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("AUTOPILOTD_MODEL"); v != "" {
		cfg.Supervisor.Model = v
	}
	if v := os.Getenv("AUTOPILOTD_MAX_BUDGET_SATS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Supervisor.MaxBudgetSats = n
		}
	}
	if v := os.Getenv("AUTOPILOTD_MAX_AGENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MaxAgents = n
		}
	}
	if v := os.Getenv("AUTOPILOTD_MARKETPLACE_STRATEGY"); v != "" {
		cfg.Marketplace.Strategy = v
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence for each
// non-zero field checked below. Supervisor SuccessThreshold,
// BackoffMultiplier, GracefulStopWindow and the two memory thresholds,
// and the Marketplace connection-pool and circuit-breaker fields, are not
// merged: dst keeps its own values for those. Mirrors the teacher's
// explicit-field-by-field merge idiom rather than reflection-based merging.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Verbose {
		dst.Verbose = true
	}

	if src.Supervisor.Command != "" {
		dst.Supervisor.Command = src.Supervisor.Command
	}
	if len(src.Supervisor.Args) > 0 {
		dst.Supervisor.Args = src.Supervisor.Args
	}
	if src.Supervisor.Model != "" {
		dst.Supervisor.Model = src.Supervisor.Model
	}
	if src.Supervisor.MaxBudgetSats != 0 {
		dst.Supervisor.MaxBudgetSats = src.Supervisor.MaxBudgetSats
	}
	if src.Supervisor.MaxTurns != 0 {
		dst.Supervisor.MaxTurns = src.Supervisor.MaxTurns
	}
	if src.Supervisor.ProjectPath != "" {
		dst.Supervisor.ProjectPath = src.Supervisor.ProjectPath
	}
	if src.Supervisor.PollInterval != 0 {
		dst.Supervisor.PollInterval = src.Supervisor.PollInterval
	}
	if src.Supervisor.BackoffStart != 0 {
		dst.Supervisor.BackoffStart = src.Supervisor.BackoffStart
	}
	if src.Supervisor.MaxBackoff != 0 {
		dst.Supervisor.MaxBackoff = src.Supervisor.MaxBackoff
	}
	if src.Supervisor.MaxConsecutiveRestarts != 0 {
		dst.Supervisor.MaxConsecutiveRestarts = src.Supervisor.MaxConsecutiveRestarts
	}

	if src.Pool.MaxAgents != 0 {
		dst.Pool.MaxAgents = src.Pool.MaxAgents
	}

	if src.Budget.DailyLimitSats != 0 {
		dst.Budget.DailyLimitSats = src.Budget.DailyLimitSats
	}
	if src.Budget.PerTickLimitSats != 0 {
		dst.Budget.PerTickLimitSats = src.Budget.PerTickLimitSats
	}
	if src.Budget.ReservedSats != 0 {
		dst.Budget.ReservedSats = src.Budget.ReservedSats
	}

	if src.Marketplace.BidTimeout != 0 {
		dst.Marketplace.BidTimeout = src.Marketplace.BidTimeout
	}
	if src.Marketplace.JobTimeout != 0 {
		dst.Marketplace.JobTimeout = src.Marketplace.JobTimeout
	}
	if src.Marketplace.Strategy != "" {
		dst.Marketplace.Strategy = src.Marketplace.Strategy
	}
	if src.Marketplace.MaxPricePremiumPct != 0 {
		dst.Marketplace.MaxPricePremiumPct = src.Marketplace.MaxPricePremiumPct
	}
	if len(src.Marketplace.PreferredRelays) > 0 {
		dst.Marketplace.PreferredRelays = src.Marketplace.PreferredRelays
	}

	if src.Trajectory.WindowSize != 0 {
		dst.Trajectory.WindowSize = src.Trajectory.WindowSize
	}

	return dst
}
