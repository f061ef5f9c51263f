// Package config loads the amgen.yaml project file. Every value has a
// default; numeric and path values also fall back to an environment
// variable when the file leaves them unset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/chazu/amgen/pkg/refine"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in a project
// directory.
const FileName = "amgen.yaml"

// Defaults for values the file and environment leave unset.
const (
	DefaultResolution = 1.0
	DefaultCount      = 10
	DefaultTemplate   = "part.zy"
	DefaultParameters = "Parameters.txt"
	DefaultStorePath  = ".amgen"
	DefaultLogLevel   = "info"
)

// Config is the root of amgen.yaml.
type Config struct {
	Refine   RefineConfig   `yaml:"refine"`
	Generate GenerateConfig `yaml:"generate"`
	Store    StoreConfig    `yaml:"store"`
	LogLevel string         `yaml:"log_level"`
}

type RefineConfig struct {
	Resolution       float64       `yaml:"resolution"`
	BuildVolume      *bool         `yaml:"build_volume"`
	SupportStructure *bool         `yaml:"support_structure"`
	MirrorY          bool          `yaml:"mirror_y"`
	Workers          int           `yaml:"workers"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
}

type GenerateConfig struct {
	Count      int    `yaml:"count"`
	Seed       uint64 `yaml:"seed"`
	Template   string `yaml:"template"`
	Parameters string `yaml:"parameters"`
	Format     string `yaml:"format"`
	MeshCells  int    `yaml:"mesh_cells"`
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// GetResolution returns the voxel resolution: config, then
// AMGEN_RESOLUTION, then DefaultResolution.
func (r *RefineConfig) GetResolution() float64 {
	if r.Resolution > 0 {
		return r.Resolution
	}
	if v := os.Getenv("AMGEN_RESOLUTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return DefaultResolution
}

// GetWorkers returns the worker count: config, then AMGEN_WORKERS, then
// one per CPU.
func (r *RefineConfig) GetWorkers() int {
	return getIntWithEnvFallback(r.Workers, "AMGEN_WORKERS", runtime.GOMAXPROCS(0))
}

// GetJobTimeout returns the per-generation timeout.
func (r *RefineConfig) GetJobTimeout() time.Duration {
	if r.JobTimeout > 0 {
		return r.JobTimeout
	}
	return refine.DefaultJobTimeout
}

// Options converts the section to refinement options. Unset toggles are on.
func (r *RefineConfig) Options() refine.Options {
	return refine.Options{
		Resolution:       r.GetResolution(),
		BuildVolume:      boolOr(r.BuildVolume, true),
		SupportStructure: boolOr(r.SupportStructure, true),
		MirrorY:          r.MirrorY,
		Workers:          r.GetWorkers(),
		JobTimeout:       r.GetJobTimeout(),
	}
}

// GetCount returns the number of generations per sweep.
func (g *GenerateConfig) GetCount() int {
	return getIntWithEnvFallback(g.Count, "AMGEN_COUNT", DefaultCount)
}

// GetTemplate returns the template path relative to the project.
func (g *GenerateConfig) GetTemplate() string {
	return stringOr(g.Template, DefaultTemplate)
}

// GetParameters returns the parameter ranges path relative to the project.
func (g *GenerateConfig) GetParameters() string {
	return stringOr(g.Parameters, DefaultParameters)
}

// GetPath returns the result store directory: config, then
// AMGEN_STORE_PATH, then DefaultStorePath.
func (s *StoreConfig) GetPath() string {
	if s.Path != "" {
		return s.Path
	}
	return stringOr(os.Getenv("AMGEN_STORE_PATH"), DefaultStorePath)
}

// GetLogLevel returns the log level name: config, then AMGEN_LOG_LEVEL,
// then DefaultLogLevel.
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return stringOr(os.Getenv("AMGEN_LOG_LEVEL"), DefaultLogLevel)
}

// getIntWithEnvFallback returns the value with priority config -> env ->
// default.
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if n, err := strconv.Atoi(envVal); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Load reads a YAML configuration file. If path is "", AMGEN_CONFIG is
// tried; with neither set an empty Config is returned and every getter
// yields its default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("AMGEN_CONFIG")
		if path == "" {
			return &Config{}, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDir reads FileName from a project directory. A missing file yields
// an empty Config.
func LoadDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	return cfg, err
}
