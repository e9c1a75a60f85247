// Package config provides configuration loading for dilemmasim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/engine"
	"github.com/talgya/spatial-dilemma/internal/logging"
	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/topology"
)

// Config contains all dilemmasim settings.
type Config struct {
	// Simulation describes the network, the update rule, and the round
	// schedule of every parameter point.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Sweep describes the episode loop and the (Dg, Dr) grid.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Storage locates the results database and the CSV output directory.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// API configures the read-only query server.
	API APIConfig `json:"api" yaml:"api"`
}

// SimulationConfig maps onto engine.Config.
type SimulationConfig struct {
	Population      int     `json:"population" yaml:"population"`
	Degree          int     `json:"degree" yaml:"degree"`
	Topology        string  `json:"topology" yaml:"topology"`
	Rule            string  `json:"rule" yaml:"rule"`
	Kappa           float64 `json:"kappa" yaml:"kappa"`
	Rewire          float64 `json:"rewire" yaml:"rewire"`
	MaxRounds       int     `json:"max_rounds" yaml:"max_rounds"`
	Window          int     `json:"window" yaml:"window"`
	Epsilon         float64 `json:"epsilon" yaml:"epsilon"`
	InitialFraction float64 `json:"initial_fraction" yaml:"initial_fraction"`
	InitialPattern  string  `json:"initial_pattern" yaml:"initial_pattern"`

	// Seed 0 draws fresh entropy every episode.
	Seed int64 `json:"seed" yaml:"seed"`
}

// SweepConfig configures the outer loops.
type SweepConfig struct {
	Episodes int         `json:"episodes" yaml:"episodes"`
	Grid     engine.Grid `json:"grid" yaml:"grid"`
}

// StorageConfig locates outputs. An empty DBPath disables the database.
type StorageConfig struct {
	DBPath    string `json:"db_path" yaml:"db_path"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is "trace", "debug", "info" (default), "warn", or "error".
	Level string `json:"level" yaml:"level"`
	// Format is "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// APIConfig configures the HTTP query server.
type APIConfig struct {
	Port       int           `json:"port" yaml:"port"`
	RateLimit  int           `json:"rate_limit" yaml:"rate_limit"`   // Requests per window and IP
	RateWindow time.Duration `json:"rate_window" yaml:"rate_window"` // e.g. "1m"
}

// Default returns a Config with the reference sweep settings.
func Default() *Config {
	ec := engine.DefaultConfig()
	return &Config{
		Simulation: SimulationConfig{
			Population:      ec.Population,
			Degree:          ec.AverageDegree,
			Topology:        string(ec.Topology),
			Rule:            string(ec.Rule),
			Kappa:           ec.Kappa,
			Rewire:          ec.Rewire,
			MaxRounds:       ec.MaxRounds,
			Window:          ec.Window,
			Epsilon:         ec.Epsilon,
			InitialFraction: ec.InitialFraction,
			InitialPattern:  string(ec.InitialPattern),
		},
		Sweep: SweepConfig{
			Episodes: 1,
			Grid:     ec.Grid,
		},
		Storage: StorageConfig{
			DBPath:    "dilemma.db",
			OutputDir: "out",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		API: APIConfig{
			Port:       8080,
			RateLimit:  120,
			RateWindow: time.Minute,
		},
	}
}

// Load builds the configuration.
// Order: defaults -> path (when non-empty) -> environment variables
func Load(path string) (*Config, error) {
	config := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Missing
// keys keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	ec, err := c.Engine()
	if err != nil {
		return err
	}
	if err := ec.Validate(); err != nil {
		return err
	}
	if c.Sweep.Episodes < 1 {
		return model.Configf("episodes", "must be at least 1, got %d", c.Sweep.Episodes)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return model.Configf("log level", "%q (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return model.Configf("log format", "%q (valid: text, json)", c.Logging.Format)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return model.Configf("api port", "must be in [0,65535], got %d", c.API.Port)
	}
	if c.API.RateLimit < 1 || c.API.RateWindow <= 0 {
		return model.Configf("api rate limit", "need a positive limit and window, got %d per %v", c.API.RateLimit, c.API.RateWindow)
	}
	return nil
}

// Engine converts the simulation and sweep sections to an engine.Config.
func (c *Config) Engine() (engine.Config, error) {
	kind, err := topology.ParseKind(c.Simulation.Topology)
	if err != nil {
		return engine.Config{}, err
	}
	rule, err := engine.ParseRule(c.Simulation.Rule)
	if err != nil {
		return engine.Config{}, err
	}
	pattern, err := agents.ParsePattern(c.Simulation.InitialPattern)
	if err != nil {
		return engine.Config{}, err
	}
	s := c.Simulation
	return engine.Config{
		Population:      s.Population,
		AverageDegree:   s.Degree,
		Topology:        kind,
		Rule:            rule,
		Kappa:           s.Kappa,
		Rewire:          s.Rewire,
		MaxRounds:       s.MaxRounds,
		Window:          s.Window,
		Epsilon:         s.Epsilon,
		InitialFraction: s.InitialFraction,
		InitialPattern:  pattern,
		Seed:            s.Seed,
		Grid:            c.Sweep.Grid,
	}, nil
}

// applyEnvOverrides applies DILEMMA_* environment variables to the config.
// Malformed numbers are reported rather than ignored.
func applyEnvOverrides(config *Config) error {
	s := &config.Simulation
	ints := []struct {
		key string
		dst *int
	}{
		{"DILEMMA_POPULATION", &s.Population},
		{"DILEMMA_DEGREE", &s.Degree},
		{"DILEMMA_MAX_ROUNDS", &s.MaxRounds},
		{"DILEMMA_WINDOW", &s.Window},
		{"DILEMMA_EPISODES", &config.Sweep.Episodes},
		{"DILEMMA_API_PORT", &config.API.Port},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"DILEMMA_KAPPA", &s.Kappa},
		{"DILEMMA_REWIRE", &s.Rewire},
		{"DILEMMA_EPSILON", &s.Epsilon},
		{"DILEMMA_INITIAL_FRACTION", &s.InitialFraction},
	}
	for _, e := range floats {
		if v := os.Getenv(e.key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
			*e.dst = f
		}
	}

	if v := os.Getenv("DILEMMA_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("DILEMMA_SEED: %w", err)
		}
		s.Seed = seed
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"DILEMMA_TOPOLOGY", &s.Topology},
		{"DILEMMA_RULE", &s.Rule},
		{"DILEMMA_INITIAL_PATTERN", &s.InitialPattern},
		{"DILEMMA_DB", &config.Storage.DBPath},
		{"DILEMMA_OUTPUT_DIR", &config.Storage.OutputDir},
		{"DILEMMA_LOG_LEVEL", &config.Logging.Level},
		{"DILEMMA_LOG_FORMAT", &config.Logging.Format},
	}
	for _, e := range strs {
		if v := os.Getenv(e.key); v != "" {
			*e.dst = v
		}
	}
	return nil
}
