package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config is the complete AFEP configuration
type Config struct {
	Run   RunConfig   `yaml:"run" mapstructure:"run"`
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`
	Fetch FetchConfig `yaml:"fetch" mapstructure:"fetch"`
	Log   LogConfig   `yaml:"log" mapstructure:"log"`
}

// RunConfig controls the selection run
type RunConfig struct {
	OutFormat       string   `yaml:"outformat" mapstructure:"outformat"`               // Extractor output format (json)
	OutPath         string   `yaml:"outpath" mapstructure:"outpath"`                   // Output directory
	SourceDelimiter string   `yaml:"source_delimiter" mapstructure:"source_delimiter"` // Separates source prefix in file names
	SemanticTypes   []string `yaml:"semantic_types" mapstructure:"semantic_types"`     // Matrix allow-list; empty or "all" = no restriction
	Workers         int      `yaml:"workers" mapstructure:"workers"`                   // Parallel file parsers
	DB              string   `yaml:"db" mapstructure:"db"`                             // SQLite run store; empty = disabled
}

// CacheConfig controls the parsed-file and fetched-page caches
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// FetchConfig controls corpus acquisition
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes      int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per domain
	BurstSize         int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	Retries           int           `yaml:"retries" mapstructure:"retries"` // Attempts per URL on transient failures
	HTTPProxy         string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy" mapstructure:"no_proxy"`
	Insecure          bool          `yaml:"insecure" mapstructure:"insecure"` // Skip TLS verification
	Workers           int           `yaml:"workers" mapstructure:"workers"`
	OutDir            string        `yaml:"out_dir" mapstructure:"out_dir"` // Corpus directory written by fetch
}

// LogConfig controls structured logging
type LogConfig struct {
	Mode  string `yaml:"mode" mapstructure:"mode"`   // dev or prod
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			OutFormat:       "json",
			OutPath:         ".",
			SourceDelimiter: "_",
			SemanticTypes:   DefaultSemanticTypes(),
			Workers:         runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:           30 * time.Second,
			UserAgent:         "AFEP/0.3 (+https://github.com/ppiankov/afep)",
			MaxBodyBytes:      5_000_000,
			RequestsPerSecond: 1,
			BurstSize:         2,
			RespectRobots:     true,
			Retries:           3,
			Workers:           4,
			OutDir:            "corpus",
		},
		Log: LogConfig{
			Mode:  "dev",
			Level: "info",
		},
	}
}

// defaultCacheDir places the cache under the user cache directory, or the working directory as a fallback
func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".afep-cache"
	}
	return filepath.Join(dir, "afep")
}
