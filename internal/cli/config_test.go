package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfigure_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	v := viper.New()
	if err := configure(v, ""); err != nil {
		t.Fatalf("configure: %v", err)
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Run.OutFormat != "json" || cfg.Run.SourceDelimiter != "_" {
		t.Errorf("Unexpected run defaults: %+v", cfg.Run)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Expected 30s fetch timeout, got %v", cfg.Fetch.Timeout)
	}
}

func TestConfigure_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `run:
  outpath: dict/flu
  semantic_types: [dsyn, sosy]
fetch:
  timeout: 45s
  requests_per_second: 0.5
log:
  level: warn
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AFEP_LOG_LEVEL", "error")
	t.Setenv("AFEP_FETCH_USER_AGENT", "AFEP-test/1.0")

	v := viper.New()
	if err := configure(v, path); err != nil {
		t.Fatalf("configure: %v", err)
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if cfg.Run.OutPath != "dict/flu" {
		t.Errorf("Expected outpath from file, got %s", cfg.Run.OutPath)
	}
	if strings.Join(cfg.Run.SemanticTypes, ",") != "dsyn,sosy" {
		t.Errorf("Unexpected semantic types: %v", cfg.Run.SemanticTypes)
	}
	if cfg.Fetch.Timeout != 45*time.Second || cfg.Fetch.RequestsPerSecond != 0.5 {
		t.Errorf("Unexpected fetch config: %+v", cfg.Fetch)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Expected env to override file, got level %s", cfg.Log.Level)
	}
	if cfg.Fetch.UserAgent != "AFEP-test/1.0" {
		t.Errorf("Expected env user agent, got %s", cfg.Fetch.UserAgent)
	}
	// Untouched keys keep their defaults
	if cfg.Fetch.Retries != 3 {
		t.Errorf("Expected default retries, got %d", cfg.Fetch.Retries)
	}
}

func TestConfigure_MissingExplicitFile(t *testing.T) {
	if err := configure(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}

	v := viper.New()
	if err := configure(v, path); err != nil {
		t.Fatalf("configure written file: %v", err)
	}
	cfg, err := decodeConfig(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Cache.DiskTTL != 7*24*time.Hour {
		t.Errorf("Expected round-tripped disk TTL, got %v", cfg.Cache.DiskTTL)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("Expected refusal to overwrite existing config")
	}
}
