// Package daemonrun wires the daemon process: signal handling, logging,
// pid file, control socket, and the orchestrator itself.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"taskqueue/internal/config"
	"taskqueue/internal/daemon"
	"taskqueue/internal/ipc"
	"taskqueue/internal/logging"
)

// LogName is the daemon log filename inside the log directory.
const LogName = "taskqueued.log"

// PIDName is the pid file inside the run directory.
const PIDName = "taskqueued.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// Run starts the daemon runtime loop and blocks until a signal or an IPC
// stop request arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logPath := filepath.Join(cfg.Paths.LogDir, LogName)
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logBackendSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.RunDir, PIDName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d := daemon.New(cfg, opts.ConfigPath, logger)
	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("%w (lock: %s)", err, d.InstanceLockPath())
		}
		return err
	}
	defer d.Stop()

	ipcServer, err := ipc.NewServer(signalCtx, ipc.SocketPath(cfg.Paths.RunDir), d, logPath, cancel, logger)
	if err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	return nil
}

// PIDPath returns the pid file path for a configuration.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.RunDir, PIDName)
}

// LogPath returns the daemon log path for a configuration.
func LogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, LogName)
}

func writePIDFile(path string) error {
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPIDFile returns the pid recorded at path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

func logBackendSnapshot(logger *slog.Logger, cfg *config.Config) {
	command := cfg.Backend.Command
	logger.Info("backend snapshot",
		logging.String(logging.FieldEventType, "backend_snapshot"),
		logging.String("command", command),
		logging.Bool("available", binaryAvailable(command)),
		logging.Int("sources", len(cfg.EnabledSources())))
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	if strings.Contains(name, string(os.PathSeparator)) {
		_, err := os.Stat(name)
		return err == nil
	}
	_, err := exec.LookPath(name)
	return err == nil
}
