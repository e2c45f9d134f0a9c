// Package config provides unified configuration loading for eigentrust.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/eigentrust/internal/matrix"
	"github.com/nvandessel/eigentrust/internal/ranking"
	"github.com/nvandessel/eigentrust/internal/simulation"
)

// Config contains all eigentrust configuration settings.
type Config struct {
	Algorithm  AlgorithmConfig  `json:"algorithm" yaml:"algorithm"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// AlgorithmConfig tunes the power iteration.
type AlgorithmConfig struct {
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"`
	Epsilon       float64 `json:"epsilon" yaml:"epsilon"`

	// Norm is "l1" or "l2".
	Norm  string  `json:"norm" yaml:"norm"`
	Alpha float64 `json:"alpha" yaml:"alpha"`

	TrackHistory bool `json:"track_history" yaml:"track_history"`

	// ZeroTrustFallback decides what a peer whose every interaction failed
	// trusts: "interacted" (default) or "cold_start".
	ZeroTrustFallback string `json:"zero_trust_fallback" yaml:"zero_trust_fallback"`
}

// SimulationConfig holds defaults for create and simulate.
type SimulationConfig struct {
	Peers                  int    `json:"peers" yaml:"peers"`
	Interactions           int    `json:"interactions" yaml:"interactions"`
	Preset                 string `json:"preset" yaml:"preset"`
	PreferentialAttachment bool   `json:"preferential_attachment" yaml:"preferential_attachment"`

	// Seed makes runs reproducible. Nil draws a fresh seed.
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// LoggingConfig configures eigentrust's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" and "trace" also write trace.jsonl run events.
	Level string `json:"level" yaml:"level"`
}

// StoreConfig selects the simulation store.
type StoreConfig struct {
	// DSN selects the backend, e.g. sqlite:///path, redis://host:6379/0,
	// file:///dir. Empty uses the SQLite database under ~/.eigentrust.
	// Supports ${VAR} syntax for env vars.
	DSN string `json:"dsn" yaml:"dsn"`
}

// RedactedDSN returns the DSN with any URL password masked.
func (c StoreConfig) RedactedDSN() string {
	u, err := url.Parse(c.DSN)
	if err != nil || u.User == nil {
		return c.DSN
	}
	if _, ok := u.User.Password(); !ok {
		return c.DSN
	}
	return u.Redacted()
}

// String implements fmt.Stringer to prevent accidental password logging.
func (c StoreConfig) String() string {
	return fmt.Sprintf("StoreConfig{DSN:%s}", c.RedactedDSN())
}

// MetricsConfig configures the Prometheus textfile written after runs.
type MetricsConfig struct {
	// Textfile is the path of the .prom file; empty disables metrics.
	Textfile string `json:"textfile" yaml:"textfile"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	engine := ranking.DefaultConfig()
	return &Config{
		Algorithm: AlgorithmConfig{
			MaxIterations:     engine.MaxIterations,
			Epsilon:           engine.Epsilon,
			Norm:              string(engine.Norm),
			Alpha:             engine.Alpha,
			TrackHistory:      false,
			ZeroTrustFallback: string(matrix.FallbackInteracted),
		},
		Simulation: SimulationConfig{
			Peers:        10,
			Interactions: 100,
			Preset:       string(simulation.PresetRandom),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.eigentrust/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".eigentrust", "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.eigentrust/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadWithFile is Load with an explicit config file in place of
// ~/.eigentrust/config.yaml. An empty path behaves like Load.
func LoadWithFile(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.DSN = expandEnvVars(config.Store.DSN)
	return config, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.RunConfig(); err != nil {
		return err
	}

	if c.Simulation.Peers < 2 || c.Simulation.Peers > simulation.MaxPeers {
		return fmt.Errorf("simulation.peers must be between 2 and %d, got %d", simulation.MaxPeers, c.Simulation.Peers)
	}
	if c.Simulation.Interactions < 0 {
		return fmt.Errorf("simulation.interactions must be non-negative, got %d", c.Simulation.Interactions)
	}
	if _, err := simulation.ParsePreset(c.Simulation.Preset); err != nil {
		return err
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}
	return nil
}

// RunConfig converts the algorithm section into engine parameters.
func (c *Config) RunConfig() (simulation.RunConfig, error) {
	norm, err := ranking.ParseNorm(c.Algorithm.Norm)
	if err != nil {
		return simulation.RunConfig{}, err
	}
	fallback, err := matrix.ParseFallback(c.Algorithm.ZeroTrustFallback)
	if err != nil {
		return simulation.RunConfig{}, err
	}
	rc := simulation.RunConfig{
		Engine: ranking.Config{
			MaxIterations: c.Algorithm.MaxIterations,
			Epsilon:       c.Algorithm.Epsilon,
			Norm:          norm,
			Alpha:         c.Algorithm.Alpha,
		},
		TrackHistory: c.Algorithm.TrackHistory,
		Fallback:     fallback,
	}
	if err := rc.Engine.Validate(); err != nil {
		return simulation.RunConfig{}, err
	}
	return rc, nil
}

// applyEnvOverrides applies EIGENTRUST_* environment variable overrides.
func applyEnvOverrides(config *Config) error {
	intVar := func(name string, dst *int) error {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = n
		}
		return nil
	}
	floatVar := func(name string, dst *float64) error {
		if v := os.Getenv(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = f
		}
		return nil
	}
	boolVar := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}
	stringVar := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if err := intVar("EIGENTRUST_MAX_ITERATIONS", &config.Algorithm.MaxIterations); err != nil {
		return err
	}
	if err := floatVar("EIGENTRUST_EPSILON", &config.Algorithm.Epsilon); err != nil {
		return err
	}
	if err := floatVar("EIGENTRUST_ALPHA", &config.Algorithm.Alpha); err != nil {
		return err
	}
	stringVar("EIGENTRUST_NORM", &config.Algorithm.Norm)
	boolVar("EIGENTRUST_TRACK_HISTORY", &config.Algorithm.TrackHistory)
	stringVar("EIGENTRUST_ZERO_TRUST_FALLBACK", &config.Algorithm.ZeroTrustFallback)

	if err := intVar("EIGENTRUST_PEERS", &config.Simulation.Peers); err != nil {
		return err
	}
	if err := intVar("EIGENTRUST_INTERACTIONS", &config.Simulation.Interactions); err != nil {
		return err
	}
	stringVar("EIGENTRUST_PRESET", &config.Simulation.Preset)
	boolVar("EIGENTRUST_PREFERENTIAL", &config.Simulation.PreferentialAttachment)
	if v := os.Getenv("EIGENTRUST_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EIGENTRUST_SEED: %w", err)
		}
		config.Simulation.Seed = &seed
	}

	stringVar("EIGENTRUST_LOG_LEVEL", &config.Logging.Level)
	stringVar("EIGENTRUST_STORE_DSN", &config.Store.DSN)
	stringVar("EIGENTRUST_METRICS_TEXTFILE", &config.Metrics.Textfile)
	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
