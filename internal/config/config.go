// Package config loads rdbscan's YAML run configuration: which dump file
// to read, how to filter it, and where decoded records should go.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds one rdbscan run's configuration.
type Config struct {
	Source SourceConfig `yaml:"source"`
	Filter FilterConfig `yaml:"filter"`
	Output OutputConfig `yaml:"output"`

	StateDir   string `yaml:"stateDir"`
	StatusFile string `yaml:"statusFile"`

	path         string
	stateDirPath string
	statusPath   string
}

// SourceConfig names the dump file to decode.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// FilterConfig mirrors rdb.Filter in YAML-friendly form.
type FilterConfig struct {
	DBs   []int    `yaml:"dbs"`
	Keys  string   `yaml:"keys"`
	Types []string `yaml:"types"`
}

// OutputConfig selects where decoded records go.
type OutputConfig struct {
	// Kind is "json" (write newline-delimited JSON records) or "redis" (replay into a
	// live Redis/Redis Cluster target).
	Kind string `yaml:"kind"`

	JSONPath string `yaml:"jsonPath"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisCluster  bool   `yaml:"redisCluster"`
	RedisPassword string `yaml:"redisPassword"`
	RateLimit     int    `yaml:"rateLimit"` // ops/sec, 0 = unlimited
	Concurrency   int    `yaml:"concurrency"`
	BatchSize     int    `yaml:"batchSize"`
}

// ValidationError collects every configuration problem found at once,
// rather than failing on the first one.
type ValidationError struct {
	Path   string
	Errors []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("config validation failed")
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	for _, err := range e.Errors {
		b.WriteString("\n - ")
		b.WriteString(err)
	}
	return b.String()
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file %s: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", absPath, err)
	}

	cfg.path = absPath
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.resolveStateDir()
	return &cfg, nil
}

// ApplyDefaults fills in unset fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Output.Kind == "" {
		c.Output.Kind = "json"
	}
	if c.Output.Kind == "json" && c.Output.JSONPath == "" {
		c.Output.JSONPath = "-" // stdout
	}
	if c.Output.Concurrency <= 0 {
		c.Output.Concurrency = 16
	}
	if c.Output.BatchSize <= 0 {
		c.Output.BatchSize = 256
	}
	if c.StateDir == "" {
		c.StateDir = "state"
	}
	if c.StatusFile == "" {
		c.StatusFile = "state/status.json"
	}
}

// Validate ensures the config is internally consistent and usable.
func (c *Config) Validate() error {
	var errs []string

	if c.Source.Path == "" {
		errs = append(errs, "source.path is required")
	}
	switch c.Output.Kind {
	case "json":
		// JSONPath always has a default ("-"), nothing further required.
	case "redis":
		if c.Output.RedisAddr == "" {
			errs = append(errs, "output.redisAddr is required when output.kind is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("output.kind %q is not one of json, redis", c.Output.Kind))
	}
	for _, t := range c.Filter.Types {
		if _, ok := logicalTypeNames[t]; !ok {
			errs = append(errs, fmt.Sprintf("filter.types entry %q is not a known logical type", t))
		}
	}
	if c.Output.Concurrency <= 0 {
		errs = append(errs, "output.concurrency must be > 0")
	}
	if c.Output.BatchSize <= 0 {
		errs = append(errs, "output.batchSize must be > 0")
	}
	if c.Output.RateLimit < 0 {
		errs = append(errs, "output.rateLimit must be >= 0")
	}

	if len(errs) > 0 {
		return &ValidationError{Path: c.path, Errors: errs}
	}
	return nil
}

var logicalTypeNames = map[string]struct{}{
	"string":    {},
	"list":      {},
	"set":       {},
	"sortedset": {},
	"hash":      {},
}

func (c *Config) resolveStateDir() {
	baseDir := filepath.Dir(c.path)
	dir := c.StateDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	c.stateDirPath = filepath.Clean(dir)

	status := c.StatusFile
	if !filepath.IsAbs(status) {
		status = filepath.Join(baseDir, status)
	}
	c.statusPath = filepath.Clean(status)
}

// ResolveStateDir returns the absolute state directory path.
func (c *Config) ResolveStateDir() string { return c.stateDirPath }

// StatusFilePath returns the absolute path of the decode-progress status file.
func (c *Config) StatusFilePath() string { return c.statusPath }

// EnsureStateDir creates the state directory and status file's parent.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.stateDirPath, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(c.statusPath), 0o755)
}

// ResolvePath resolves path relative to the config file's directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || path == "-" {
		return path
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(c.path), path))
}

// PrettySummary renders a short multi-line overview for console output.
func (c *Config) PrettySummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "  source     : %s\n", c.Source.Path)
	fmt.Fprintf(&b, "  output     : %s\n", c.Output.Kind)
	if c.Output.Kind == "redis" {
		fmt.Fprintf(&b, "  redis      : %s (cluster=%t, concurrency=%d, batch=%d)\n",
			c.Output.RedisAddr, c.Output.RedisCluster, c.Output.Concurrency, c.Output.BatchSize)
	}
	fmt.Fprintf(&b, "  stateDir   : %s\n", c.ResolveStateDir())
	fmt.Fprintf(&b, "  statusFile : %s", c.StatusFilePath())
	return b.String()
}
