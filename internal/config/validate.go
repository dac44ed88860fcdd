package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateSources()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.RunDir) == "" {
		return errors.New("paths.run_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxAttempts < 1 {
		return errors.New("queue.max_attempts must be at least 1")
	}
	if c.Queue.ShutdownGraceSeconds < 0 {
		return errors.New("queue.shutdown_grace_seconds must not be negative")
	}
	if c.Queue.ReclaimInterval < 0 {
		return errors.New("queue.reclaim_interval_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.DebounceMillis < 0 {
		return errors.New("watch.debounce_ms must not be negative")
	}
	if c.Watch.FallbackSeconds < 1 {
		return errors.New("watch.poll_fallback_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if strings.TrimSpace(c.Backend.Command) == "" {
		return errors.New("backend.command must be set")
	}
	if c.Backend.TimeoutSeconds < 0 {
		return errors.New("backend.timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return fmt.Errorf("sources[%d].id must be set", i)
		}
		if strings.ContainsAny(id, "/\\ ") {
			return fmt.Errorf("source id %q must not contain spaces or path separators", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate source id %q", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("source %q: path must be set", id)
		}
	}
	return nil
}
