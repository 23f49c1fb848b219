package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("addr = %q, want :8000", cfg.Server.Addr)
	}
	if len(cfg.Datasets) != 1 || cfg.Datasets[0].Name != "dvach" {
		t.Fatalf("datasets = %+v", cfg.Datasets)
	}
	if d := cfg.Datasets[0]; d.TextColumn != "comment" || d.LabelColumn != "toxic" {
		t.Errorf("dvach columns = %q/%q", d.TextColumn, d.LabelColumn)
	}
}

func TestUnmarshal_OverDefaults(t *testing.T) {
	cfg, err := Unmarshal([]byte(`
server:
  addr: 127.0.0.1:9000
  shutdown_timeout: 3s
cache:
  size: 4
datasets:
  - name: reviews
    text_column: body
    label_column: label
`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("shutdown_timeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Cache.Size != 4 {
		t.Errorf("cache.size = %d", cfg.Cache.Size)
	}
	if len(cfg.Datasets) != 1 || cfg.Datasets[0].Name != "reviews" {
		t.Errorf("datasets = %+v", cfg.Datasets)
	}
	// untouched sections keep their defaults
	if cfg.Paths.Artifacts != "artifacts" || cfg.Log.Level != "info" {
		t.Errorf("defaults lost: paths=%+v log=%+v", cfg.Paths, cfg.Log)
	}
}

func TestUnmarshal_UnknownField(t *testing.T) {
	if _, err := Unmarshal([]byte("server:\n  port: 8000\n")); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestUnmarshal_Empty(t *testing.T) {
	cfg, err := Unmarshal(nil)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvProjectRoot, dir)
	t.Setenv(EnvAddr, ":9999")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want env override", cfg.Log.Level)
	}
	if got, want := cfg.ArtifactsDir(), filepath.Join(dir, "artifacts"); got != want {
		t.Errorf("artifacts dir = %q, want %q", got, want)
	}
	if got, want := cfg.DataDir(), filepath.Join(dir, "data"); got != want {
		t.Errorf("data dir = %q, want %q", got, want)
	}
	if got, want := cfg.RunsDatabase(), filepath.Join(dir, "runs.db"); got != want {
		t.Errorf("runs database = %q, want %q", got, want)
	}
	if got := cfg.LogOptions().File; got != "" {
		t.Errorf("log file = %q, want empty", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestResolve(t *testing.T) {
	cfg := Default()
	cfg.Paths.Root = "/srv/app"
	if got := cfg.Resolve("/abs/x"); got != "/abs/x" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := cfg.Resolve("rel"); got != filepath.Join("/srv/app", "rel") {
		t.Errorf("relative path = %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero cache", func(c *Config) { c.Cache.Size = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"empty artifacts", func(c *Config) { c.Paths.Artifacts = "" }},
		{"empty runs database", func(c *Config) { c.Runs.Database = "" }},
		{"negative shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }},
		{"empty dataset name", func(c *Config) { c.Datasets = append(c.Datasets, DatasetConfig{}) }},
		{"duplicate dataset", func(c *Config) { c.Datasets = append(c.Datasets, c.Datasets[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve *scigoerrors.ValidationError
			if !scigoerrors.As(err, &ve) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}
