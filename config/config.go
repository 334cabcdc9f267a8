package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the layout of a threadpool configuration file
type File struct {
	Pool    PoolConfig    `yaml:"pool" json:"pool"`
	Run     RunConfig     `yaml:"run" json:"run"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

type PoolConfig struct {
	Workers      int  `yaml:"workers" json:"workers"`
	LockOSThread bool `yaml:"lock_os_thread" json:"lock_os_thread"`
}

type RunConfig struct {
	Tasks      int    `yaml:"tasks" json:"tasks"`
	Submitters int    `yaml:"submitters" json:"submitters"`
	Wait       string `yaml:"wait" json:"wait"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type JournalConfig struct {
	// Path of the sqlite database, empty disables the journal
	Path string `yaml:"path" json:"path"`
}

type MetricsConfig struct {
	// Addr to serve /metrics on, empty disables the endpoint
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration of the classic demo: two workers, four
// items, two seconds to run them.
func Default() *File {
	return &File{
		Pool: PoolConfig{Workers: 2},
		Run: RunConfig{
			Tasks:      4,
			Submitters: 1,
			Wait:       "2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads a YAML or JSON configuration on top of Default
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// Validate checks the configuration
func (f *File) Validate() error {
	if f.Pool.Workers < 1 {
		return fmt.Errorf("pool.workers must be at least 1")
	}

	if f.Run.Tasks < 0 {
		return fmt.Errorf("run.tasks must be non-negative")
	}

	if f.Run.Submitters < 1 {
		return fmt.Errorf("run.submitters must be at least 1")
	}

	if _, err := f.WaitDuration(); err != nil {
		return err
	}

	if _, err := ParseLevel(f.Logging.Level); err != nil {
		return err
	}

	switch strings.ToLower(f.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format: %s", f.Logging.Format)
	}

	return nil
}

// WaitDuration is how long the demo lets the pool work before shutting it down
func (f *File) WaitDuration() (time.Duration, error) {
	if f.Run.Wait == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(f.Run.Wait)
	if err != nil {
		return 0, fmt.Errorf("invalid run.wait: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("run.wait must be non-negative")
	}
	return d, nil
}

// ParseLevel maps debug, info, warn and error to their slog levels
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown logging.level: %s", level)
	}
}

// Logger builds the logger described by the logging section, writing to w
func (f *File) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(f.Logging.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(f.Logging.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
