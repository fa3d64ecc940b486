package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/xab-mack/solbench/internal/model"
)

// ConfigFileName is searched upward from the contracts directory, so a corpus
// checked into a repo can carry its own run settings.
const ConfigFileName = ".solbench.yaml"

// Config is the immutable run configuration. It is assembled once (file then
// flag overrides), validated, and threaded through constructors; no component
// reads ambient state.
type Config struct {
	ContractsDir string   `yaml:"contractsDir"`
	OutputDir    string   `yaml:"outputDir"`
	Mode         string   `yaml:"mode"`
	Analyzers    []string `yaml:"analyzers"`
	TimeoutSec   int      `yaml:"timeoutSec"`
	Processes    int      `yaml:"processes"`
	MemLimit     string   `yaml:"memLimit"` // unit-suffixed, e.g. "512m", "4g"
	CPUQuota     int      `yaml:"cpuQuota"` // percent, 0 disables throttling
	Format       string   `yaml:"format"`   // json | sarif
	KeepRaw      bool     `yaml:"keepRaw"`
}

func Default() Config {
	return Config{
		OutputDir:  "logs",
		Mode:       string(model.ModeSource),
		Analyzers:  []string{"ethor", "mythril"},
		TimeoutSec: 300,
		Processes:  2,
		MemLimit:   "4g",
		Format:     "json",
	}
}

// Load returns the defaults merged with the nearest config file found by
// searching upward from startDir. A missing file is not an error.
func Load(startDir string) (Config, string, error) {
	cfg := Default()
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return cfg, "", err
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			b, err := os.ReadFile(candidate)
			if err != nil {
				return cfg, candidate, err
			}
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, candidate, fmt.Errorf("parse %s: %w", candidate, err)
			}
			return cfg, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached root
			break
		}
		dir = parent
	}
	return cfg, "", nil
}

// Validate reports configuration errors. These are fatal and surfaced before
// any job runs; per-job failures later in the run are data, not errors.
func (c Config) Validate() error {
	if c.ContractsDir == "" {
		return errors.New("contracts directory is required")
	}
	info, err := os.Stat(c.ContractsDir)
	if err != nil {
		return fmt.Errorf("contracts directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("contracts directory %s is not a directory", c.ContractsDir)
	}
	if _, ok := model.ParseMode(c.Mode); !ok {
		return fmt.Errorf("invalid mode %q (want source or runtime)", c.Mode)
	}
	if len(c.Analyzers) == 0 {
		return errors.New("at least one analyzer is required")
	}
	seen := make(map[string]bool, len(c.Analyzers))
	for _, a := range c.Analyzers {
		if seen[a] {
			return fmt.Errorf("duplicate analyzer %q", a)
		}
		seen[a] = true
	}
	if c.TimeoutSec <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSec)
	}
	if c.Processes <= 0 {
		return fmt.Errorf("processes must be positive, got %d", c.Processes)
	}
	if c.CPUQuota < 0 || c.CPUQuota > 100 {
		return fmt.Errorf("cpu quota must be within [0,100], got %d", c.CPUQuota)
	}
	if c.Format != "json" && c.Format != "sarif" {
		return fmt.Errorf("invalid format %q (want json or sarif)", c.Format)
	}
	if _, err := c.MemLimitBytes(); err != nil {
		return err
	}
	return nil
}

// MemLimitBytes parses the suffixed memory limit. Empty means unlimited.
func (c Config) MemLimitBytes() (uint64, error) {
	if c.MemLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MemLimit)
	if err != nil {
		return 0, fmt.Errorf("invalid mem limit %q: %w", c.MemLimit, err)
	}
	return n, nil
}

// Limits materializes the per-job resource bounds.
func (c Config) Limits() (model.Limits, error) {
	mem, err := c.MemLimitBytes()
	if err != nil {
		return model.Limits{}, err
	}
	return model.Limits{
		Timeout:     time.Duration(c.TimeoutSec) * time.Second,
		MemoryBytes: mem,
		CPUQuota:    c.CPUQuota,
	}, nil
}
