// Package config loads the service configuration from YAML and the environment.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// Environment variables read by Load.
const (
	EnvProjectRoot = "PROJECT_ROOT"
	EnvAddr        = "SCIGO_SERVE_ADDR"
	EnvLogLevel    = "SCIGO_SERVE_LOG_LEVEL"
)

// Config is the whole service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Paths    PathsConfig     `yaml:"paths"`
	Log      LogConfig       `yaml:"log"`
	Cache    CacheConfig     `yaml:"cache"`
	Datasets []DatasetConfig `yaml:"datasets"`
	Runs     RunsConfig      `yaml:"runs"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PathsConfig holds directories. Relative Data and Artifacts are resolved
// against Root; an empty Root means the working directory.
type PathsConfig struct {
	Root      string `yaml:"root"`
	Data      string `yaml:"data"`
	Artifacts string `yaml:"artifacts"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type CacheConfig struct {
	// Size is the number of loaded models kept in memory.
	Size int `yaml:"size"`
}

// DatasetConfig registers one CSV dataset read from <data>/<name>/<split>.csv.
type DatasetConfig struct {
	Name        string `yaml:"name"`
	TextColumn  string `yaml:"text_column"`
	LabelColumn string `yaml:"label_column"`
}

type RunsConfig struct {
	// Database is the SQLite file of the run ledger, relative to Root.
	Database string `yaml:"database"`
}

// Default returns a configuration that serves the dvach dataset on :8000.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8000", ShutdownTimeout: 15 * time.Second},
		Paths:  PathsConfig{Data: "data", Artifacts: "artifacts"},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache: CacheConfig{Size: 16},
		Datasets: []DatasetConfig{
			{Name: "dvach", TextColumn: "comment", LabelColumn: "toxic"},
		},
		Runs: RunsConfig{Database: "runs.db"},
	}
}

// Load reads the YAML at path over Default, applies environment overrides and
// validates the result. An empty path reads no file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open config %s", path)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Unmarshal parses YAML over Default without reading the environment.
func Unmarshal(b []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvProjectRoot); ok && v != "" {
		c.Paths.Root = v
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "must not be empty", c.Server.Addr)
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.NewValidationError("server.shutdown_timeout", "must not be negative", c.Server.ShutdownTimeout)
	}
	if c.Cache.Size <= 0 {
		return errors.NewValidationError("cache.size", "must be positive", c.Cache.Size)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Paths.Artifacts == "" {
		return errors.NewValidationError("paths.artifacts", "must not be empty", c.Paths.Artifacts)
	}
	if c.Runs.Database == "" {
		return errors.NewValidationError("runs.database", "must not be empty", c.Runs.Database)
	}
	seen := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		if d.Name == "" {
			return errors.NewValidationError("datasets.name", "must not be empty", d.Name)
		}
		if seen[d.Name] {
			return errors.NewValidationError("datasets.name", "duplicate dataset name", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Resolve makes a relative p absolute against Paths.Root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	root := c.Paths.Root
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	return filepath.Join(root, p)
}

// DataDir returns the resolved dataset directory.
func (c *Config) DataDir() string { return c.Resolve(c.Paths.Data) }

// ArtifactsDir returns the resolved artifact root.
func (c *Config) ArtifactsDir() string { return c.Resolve(c.Paths.Artifacts) }

// RunsDatabase returns the resolved run ledger path.
func (c *Config) RunsDatabase() string { return c.Resolve(c.Runs.Database) }

// LogOptions converts the log section for log.Setup.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Resolve(c.Log.File),
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
