// Package ipc carries control traffic between the CLI and the daemon as
// JSON-RPC over a Unix domain socket in the run directory.
package ipc
