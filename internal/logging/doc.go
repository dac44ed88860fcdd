// Package logging provides slog construction with console and JSON handlers
// plus shared attribute helpers used across the daemon and CLI.
package logging
