// Command taskqueued is the task queue daemon process. It is normally
// launched by "taskqueue daemon start" but can run in the foreground
// directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"taskqueue/internal/config"
	"taskqueue/internal/daemonrun"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	cfg, path, exists, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if !exists {
		fmt.Fprintf(os.Stderr, "no config file found, using defaults (expected at %s)\n", path)
	}

	opts := daemonrun.Options{ConfigPath: path, LogLevel: *logLevel}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("taskqueued: %v", err)
	}
}
