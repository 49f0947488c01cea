// # internal/config/config.go
package config

import (
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Paths       []string `toml:"paths"`
	ProjectKey  string   `toml:"project_key"`
	StorePath   string   `toml:"store_path"`
	MetricsAddr string   `toml:"metrics_addr"`
	TraceTarget string   `toml:"trace_target"`
	Workers     int      `toml:"workers"`
	AllowStubs  bool     `toml:"allow_stubs"`
	Exclude     Exclude  `toml:"exclude"`
	Watch       Watch    `toml:"watch"`
	Output      Output   `toml:"output"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RebuildsPerSecond caps how often watch events may trigger a full
	// rebuild, on top of debouncing.
	RebuildsPerSecond float64 `toml:"rebuilds_per_second"`
}

type Output struct {
	JSON string `toml:"json"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Paths) == 0 {
		c.Paths = []string{"."}
	}
	if c.ProjectKey == "" {
		c.ProjectKey = "default"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
	if c.Watch.RebuildsPerSecond <= 0 {
		c.Watch.RebuildsPerSecond = 1
	}
	if len(c.Exclude.Dirs) == 0 {
		c.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "venv", ".tox"}
	}
	if len(c.Exclude.Files) == 0 {
		c.Exclude.Files = []string{".*", "*_flymake.py"}
	}
}
