// Package config loads the option defaults shared by mkvgate and mkvgated
// from a YAML or TOML file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LogConfig configures the rotated log file.
type LogConfig struct {
	Directory  string `yaml:"directory" toml:"directory"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" toml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays" toml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups" toml:"maxBackups"`
	Compress   bool   `yaml:"compress" toml:"compress"`
	Verbose    bool   `yaml:"verbose" toml:"verbose"`
}

// Path is the log file to write, or "" when file logging is off.
func (l LogConfig) Path(name string) string {
	switch {
	case l.File != "":
		return l.File
	case l.Directory != "":
		return filepath.Join(l.Directory, name)
	}
	return ""
}

// ValidateConfig holds the defaults of the validation flags.
type ValidateConfig struct {
	NoWarn  bool `yaml:"noWarn" toml:"noWarn"`
	Live    bool `yaml:"live" toml:"live"`
	Details bool `yaml:"details" toml:"details"`
	DivX    bool `yaml:"divx" toml:"divx"`
}

// OutputConfig names the optional artifacts written after each run.
type OutputConfig struct {
	History string `yaml:"history" toml:"history"`
	Metrics bool   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig configures mkvgated.
type ServerConfig struct {
	Port        int    `yaml:"port" toml:"port"`
	StorageDir  string `yaml:"storageDir" toml:"storageDir"`
	Concurrency int    `yaml:"concurrency" toml:"concurrency"`
	MaxUploadMB int64  `yaml:"maxUploadMB" toml:"maxUploadMB"`
}

type Config struct {
	Validate ValidateConfig `yaml:"validate" toml:"validate"`
	Output   OutputConfig   `yaml:"output" toml:"output"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Logs     LogConfig      `yaml:"logs" toml:"logs"`
}

// Default returns a configuration with every default filled in.
func Default() Config {
	var cfg Config
	cfg.fill("")
	return cfg
}

// Load decodes path as TOML when it ends in .toml and as YAML otherwise.
// Relative paths in the file are resolved against its directory.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && len(bytes.TrimSpace(data)) > 0 {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	cfg.fill(filepath.Dir(path))
	return cfg, nil
}

func (cfg *Config) fill(baseDir string) {
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) || baseDir == "" {
			return p
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.StorageDir == "" {
		cfg.Server.StorageDir = filepath.Join(".", "data")
	} else {
		cfg.Server.StorageDir = resolve(cfg.Server.StorageDir)
	}
	if cfg.Server.Concurrency <= 0 {
		cfg.Server.Concurrency = runtime.NumCPU()
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 4096
	}
	cfg.Output.History = resolve(cfg.Output.History)
	cfg.Logs.Directory = resolve(cfg.Logs.Directory)
	cfg.Logs.File = resolve(cfg.Logs.File)
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 25
	}
	if cfg.Logs.MaxAgeDays <= 0 {
		cfg.Logs.MaxAgeDays = 7
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
}
