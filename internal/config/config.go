package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains daemon directory configuration.
type Paths struct {
	Workspace string `toml:"workspace"`
	LogDir    string `toml:"log_dir"`
	RunDir    string `toml:"run_dir"`
}

// Queue contains execution and shutdown settings.
type Queue struct {
	MaxAttempts          int `toml:"max_attempts"`
	ShutdownGraceSeconds int `toml:"shutdown_grace_seconds"`
	ReclaimInterval      int `toml:"reclaim_interval_seconds"`
}

// Watch contains filesystem notification settings.
type Watch struct {
	Enabled         bool `toml:"enabled"`
	DebounceMillis  int  `toml:"debounce_ms"`
	FallbackSeconds int  `toml:"poll_fallback_seconds"`
}

// Backend configures the external agent invocation.
type Backend struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Source describes one watched task directory with its own sequential queue.
type Source struct {
	ID        string `toml:"id"`
	Path      string `toml:"path"`
	Workspace string `toml:"workspace"`
	Enabled   bool   `toml:"enabled"`
}

// Config encapsulates all configuration values for the task queue daemon.
type Config struct {
	Paths   Paths    `toml:"paths"`
	Queue   Queue    `toml:"queue"`
	Watch   Watch    `toml:"watch"`
	Backend Backend  `toml:"backend"`
	Logging Logging  `toml:"logging"`
	Sources []Source `toml:"sources"`
}

// PendingDir returns the queue input directory for a source.
func (s Source) PendingDir() string { return filepath.Join(s.Path, "pending") }

// CompletedDir returns the terminal archive for successful tasks.
func (s Source) CompletedDir() string { return filepath.Join(s.Path, "completed") }

// FailedDir returns the terminal archive for failed and cancelled tasks.
func (s Source) FailedDir() string { return filepath.Join(s.Path, "failed") }

// ResultsDir returns the directory holding result artifacts.
func (s Source) ResultsDir() string { return filepath.Join(s.Path, "results") }

// ReportsDir returns the directory holding per-attempt backend reports.
func (s Source) ReportsDir() string { return filepath.Join(s.Path, "reports") }

// EnsureLayout creates the source's directory tree.
func (s Source) EnsureLayout() error {
	for _, dir := range []string{s.PendingDir(), s.CompletedDir(), s.FailedDir(), s.ResultsDir(), s.ReportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkspaceFor resolves the project workspace a source executes in.
func (c *Config) WorkspaceFor(s Source) string {
	if strings.TrimSpace(s.Workspace) != "" {
		return s.Workspace
	}
	return c.Paths.Workspace
}

// SourceByID returns the configured source with the given id.
func (c *Config) SourceByID(id string) (Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// EnabledSources returns the sources the daemon should run workers for.
func (c *Config) EnabledSources() []Source {
	out := make([]Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// DebounceWindow returns the watch debounce interval as a duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// ShutdownGrace returns the graceful-stop deadline as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Queue.ShutdownGraceSeconds) * time.Second
}

// ReclaimInterval returns the stale-lock sweep cadence as a duration.
func (c *Config) ReclaimInterval() time.Duration {
	return time.Duration(c.Queue.ReclaimInterval) * time.Second
}

// BackendTimeout returns the per-attempt execution deadline; zero means none.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/taskqueue/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved path; the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("taskqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// Save writes the configuration atomically. A sibling advisory lock
// serializes concurrent CLI writers; the write itself is temp + rename so a
// reader never sees a truncated file.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.New("config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock config: %w", err)
	}
	defer lock.Unlock()

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the directories daemon operation requires.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.RunDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, s := range c.Sources {
		if err := s.EnsureLayout(); err != nil {
			return err
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
