package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskqueue/internal/testsupport"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := runCommand(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, name := range []string{"daemon", "load", "status", "show", "cancel", "result", "history", "logs", "source", "config"} {
		if !strings.Contains(out, name) {
			t.Errorf("help output missing %q", name)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "--config", cfgPath, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v (%s)", err, out)
	}
	if !strings.Contains(out, cfgPath) {
		t.Fatalf("init output missing path: %s", out)
	}

	// A second init without --force must refuse to overwrite.
	if _, err := runCommand(t, "--config", cfgPath, "config", "init"); err == nil {
		t.Fatal("expected error for existing config")
	}
	if out, err := runCommand(t, "--config", cfgPath, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init failed: %v (%s)", err, out)
	}

	out, err = runCommand(t, "--config", cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "backend:") || !strings.Contains(out, "sources:") {
		t.Fatalf("unexpected show output: %s", out)
	}
}

func TestSourceListReadsConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("main"), testsupport.WithSource("hotfix"))
	cfgPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	out, err := runCommand(t, "--config", cfgPath, "source", "list")
	if err != nil {
		t.Fatalf("source list failed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "main") || !strings.Contains(out, "hotfix") {
		t.Fatalf("source list missing sources: %s", out)
	}
}

func TestShowInspectsDirectoriesWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("main"))
	cfgPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}
	src, ok := cfg.SourceByID("main")
	if !ok {
		t.Fatal("source main not configured")
	}

	id := testsupport.TaskID(1, "show")
	doc := testsupport.SeedTask(t, src, id)

	out, err := runCommand(t, "--config", cfgPath, "show", id)
	if err != nil {
		t.Fatalf("show pending failed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("expected pending state, got: %s", out)
	}

	failedDoc := filepath.Join(src.FailedDir(), filepath.Base(doc.Path))
	if err := os.Rename(doc.Path, failedDoc); err != nil {
		t.Fatalf("move to failed: %v", err)
	}
	note := filepath.Join(src.FailedDir(), id+".error")
	if err := os.WriteFile(note, []byte("error: boom\n"), 0o644); err != nil {
		t.Fatalf("write error note: %v", err)
	}

	out, err = runCommand(t, "--config", cfgPath, "show", id)
	if err != nil {
		t.Fatalf("show failed task failed: %v (%s)", err, out)
	}
	if !strings.Contains(out, "failed") || !strings.Contains(out, "boom") {
		t.Fatalf("expected failed state with error note, got: %s", out)
	}

	if _, err := runCommand(t, "--config", cfgPath, "show", testsupport.TaskID(2, "missing")); err == nil {
		t.Fatal("expected not-found error for unknown task")
	}
}

func TestDaemonStartResolvesConfigWithSocketFlag(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("not valid toml ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socket := filepath.Join(t.TempDir(), "ctl.sock")
	_, err := runCommand(t, "--config", cfgPath, "--socket", socket, "daemon", "start")
	if err == nil {
		t.Fatal("expected config error before any launch attempt")
	}
}

func TestCommandsWithoutDaemonReportNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("main"))
	cfgPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	_, err := runCommand(t, "--config", cfgPath, "status")
	if err == nil || !strings.Contains(err.Error(), "daemon not running") {
		t.Fatalf("expected daemon-not-running error, got %v", err)
	}

	out, err := runCommand(t, "--config", cfgPath, "daemon", "status")
	if err != nil {
		t.Fatalf("daemon status failed: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Fatalf("unexpected daemon status output: %s", out)
	}
}
