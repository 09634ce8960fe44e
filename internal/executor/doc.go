// Package executor runs backend shell commands on behalf of the control plane.
//
// # Contract
//
// Exec takes a full shell command string and returns its trimmed stdout when
// the command exits with status 0. Any non-zero exit or transport failure is
// reported as an error wrapping ErrNoResult, so callers only ever need a
// single nil-check before using a result.
//
// Arguments are interpolated by callers into double-quoted shell words via
// Quote. No injection hardening is performed; the daemon runs in a trusted,
// root-owned context next to the module's own scripts.
//
// # Concurrency
//
// Shell is safe for concurrent use. Identical commands issued while one is
// already running share that run's result instead of spawning a second
// process. Distinct commands run independently; nothing is queued and a
// running command is only interrupted by its context deadline.
package executor
