// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"taskqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults a shell backend that succeeds immediately and applies any
// provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Workspace = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RunDir = filepath.Join(base, "run")
	cfgVal.Backend.Command = "/bin/sh"
	cfgVal.Backend.Args = []string{"-c", "exit 0", "--"}
	cfgVal.Watch.DebounceMillis = 20

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackendScript replaces the backend with an inline shell script. The
// task document path arrives as "$1".
func WithBackendScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Command = "/bin/sh"
		b.cfg.Backend.Args = []string{"-c", script, "--"}
	}
}

// WithSource registers a source rooted under the test's temp directory and
// creates its directory layout.
func WithSource(id string) ConfigOption {
	return func(b *configBuilder) {
		src := config.Source{
			ID:      id,
			Path:    filepath.Join(b.baseDir, "tasks", id),
			Enabled: true,
		}
		if err := src.EnsureLayout(); err != nil {
			b.t.Fatalf("layout for source %s: %v", id, err)
		}
		b.cfg.Sources = append(b.cfg.Sources, src)
	}
}

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.Workspace
}
