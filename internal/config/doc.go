// Package config loads, validates, and persists the TOML configuration for
// the task queue daemon and CLI. Paths are expanded and normalized at load
// time; saves are atomic and serialized with an advisory file lock so
// concurrent CLI invocations cannot interleave writes.
package config
