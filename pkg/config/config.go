// Package config loads bulkmapper settings from a YAML file, a .env file and
// the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables, command-line flags. Flags are applied by the command itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	mapper "github.com/jdziat/bulk-mapper"
	"github.com/jdziat/bulk-mapper/pkg/endpoint"
)

// Environment variables.
const (
	EnvKey     = "ADG_API_KEY"
	EnvBaseURL = "ADG_API_URL"
	EnvJournal = "ADG_JOURNAL"
)

// File is the YAML config file. Unset fields keep their defaults.
type File struct {
	Endpoint      endpoint.Endpoint `yaml:"endpoint"`
	Key           string            `yaml:"key"`
	BaseURL       string            `yaml:"base_url"`
	NumThreads    int               `yaml:"num_threads"`
	NumRetries    *int              `yaml:"num_retries"`
	Timeout       time.Duration     `yaml:"timeout"`
	BatchSize     int               `yaml:"batch_size"`
	Cleanup       *bool             `yaml:"cleanup"`
	CompaniesOnly bool              `yaml:"companies_only"`
	Hint          string            `yaml:"hint"`
	Journal       string            `yaml:"journal"`
	Cron          string            `yaml:"cron"`
	LogLevel      string            `yaml:"log_level"`
}

// Settings is everything the command needs besides per-invocation flags.
type Settings struct {
	Mapper   mapper.Config
	Hint     string
	Journal  string
	Cron     string
	LogLevel string
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Mapper:   mapper.DefaultConfig(),
		LogLevel: "info",
	}
}

// LoadFile reads a YAML config file. A missing file is not an error.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Apply overlays the set fields of f onto s.
func (f *File) Apply(s *Settings) {
	if f.Endpoint.Valid() {
		s.Mapper.Endpoint = f.Endpoint
	}
	if f.Key != "" {
		s.Mapper.Key = f.Key
	}
	if f.BaseURL != "" {
		s.Mapper.BaseURL = f.BaseURL
	}
	if f.NumThreads != 0 {
		s.Mapper.NumThreads = f.NumThreads
	}
	if f.NumRetries != nil {
		s.Mapper.NumRetries = *f.NumRetries
	}
	if f.Timeout != 0 {
		s.Mapper.Timeout = f.Timeout
	}
	if f.BatchSize != 0 {
		s.Mapper.BatchSize = f.BatchSize
	}
	if f.Cleanup != nil {
		s.Mapper.Cleanup = *f.Cleanup
	}
	if f.CompaniesOnly {
		s.Mapper.CompaniesOnly = true
	}
	if f.Hint != "" {
		s.Hint = f.Hint
	}
	if f.Journal != "" {
		s.Journal = f.Journal
	}
	if f.Cron != "" {
		s.Cron = f.Cron
	}
	if f.LogLevel != "" {
		s.LogLevel = f.LogLevel
	}
}

// ApplyEnv overlays environment variables onto s. lookup is usually os.LookupEnv.
func ApplyEnv(s *Settings, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvKey); ok && strings.TrimSpace(v) != "" {
		s.Mapper.Key = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		s.Mapper.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvJournal); ok && strings.TrimSpace(v) != "" {
		s.Journal = strings.TrimSpace(v)
	}
}

// Load builds settings from defaults, the YAML file at path and the environment.
func Load(path string) (Settings, error) {
	s := Default()
	f, err := LoadFile(path)
	if err != nil {
		return s, err
	}
	f.Apply(&s)
	ApplyEnv(&s, os.LookupEnv)
	return s, nil
}
