package daemonrun_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskqueue/internal/daemonrun"
	"taskqueue/internal/ipc"
	"taskqueue/internal/testsupport"
)

func TestRunServesControlSocketUntilStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("main"))
	cfgPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(context.Background(), cfg, daemonrun.Options{ConfigPath: cfgPath})
	}()

	socket := ipc.SocketPath(cfg.Paths.RunDir)
	var client *ipc.Client
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		if client, err = ipc.Dial(socket); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if client == nil {
		t.Fatal("control socket never came up")
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Status.Running {
		t.Fatal("daemon should report running")
	}

	// The pid file names this process.
	pid, err := daemonrun.ReadPIDFile(daemonrun.PIDPath(cfg))
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file holds %d, want %d", pid, os.Getpid())
	}

	if _, err := client.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after stop")
	}

	if _, err := os.Stat(daemonrun.PIDPath(cfg)); !os.IsNotExist(err) {
		t.Fatalf("pid file should be removed, got %v", err)
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("main"))
	cfgPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- daemonrun.Run(ctx, cfg, daemonrun.Options{ConfigPath: cfgPath})
	}()

	socket := ipc.SocketPath(cfg.Paths.RunDir)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if client, err := ipc.Dial(socket); err == nil {
			client.Close()
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{ConfigPath: cfgPath}); err == nil {
		t.Fatal("second instance should fail to start")
	}

	cancel()
	<-done
}
