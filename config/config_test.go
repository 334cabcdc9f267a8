package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	wait, err := cfg.WaitDuration()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, wait)
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "pool.yaml", `
pool:
  workers: 8
  lock_os_thread: true
run:
  tasks: 10000
  submitters: 4
logging:
  level: debug
  format: json
journal:
  path: /tmp/threadpool.db
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 8, cfg.Pool.Workers)
	require.True(t, cfg.Pool.LockOSThread)
	require.Equal(t, 10000, cfg.Run.Tasks)
	require.Equal(t, 4, cfg.Run.Submitters)
	// not in the file, so the default stays
	require.Equal(t, "2s", cfg.Run.Wait)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "/tmp/threadpool.db", cfg.Journal.Path)
	require.Empty(t, cfg.Metrics.Addr)
}

func TestLoadFile_JSON(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"pool":    map[string]any{"workers": 1},
		"metrics": map[string]any{"addr": ":9090"},
	})
	require.NoError(t, err)

	cfg, err := LoadFile(writeFile(t, "pool.json", string(raw)))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Pool.Workers)
	require.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadFile(writeFile(t, "pool.toml", "workers = 2"))
	require.ErrorContains(t, err, "unsupported config format")

	_, err = LoadFile(writeFile(t, "pool.yaml", "pool: [1, 2"))
	require.ErrorContains(t, err, "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*File)
		errMsg string
	}{
		{"no workers", func(f *File) { f.Pool.Workers = 0 }, "pool.workers"},
		{"negative tasks", func(f *File) { f.Run.Tasks = -1 }, "run.tasks"},
		{"no submitters", func(f *File) { f.Run.Submitters = 0 }, "run.submitters"},
		{"bad wait", func(f *File) { f.Run.Wait = "soon" }, "run.wait"},
		{"negative wait", func(f *File) { f.Run.Wait = "-1s" }, "run.wait"},
		{"bad level", func(f *File) { f.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(f *File) { f.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			require.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got, in)
	}
}

func TestLogger_JSON(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "n", 1)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "shown", line["msg"])
}
