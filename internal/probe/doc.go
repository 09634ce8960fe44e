// Package probe runs the is_available capability check of each tweak.
//
// # Overview
//
// A tweak whose backend reports available=0 is hidden from the panel, for
// example an undervolt card on a kernel without voltage control. Probes are
// bounded, deterministic calls: each one runs under its own deadline and
// returns an explicit error without retries.
//
// # Outputs & Semantics
//
// Availability returns a core.Availability capturing:
//   - Known:       true once the backend produced a parseable answer.
//   - Available:   the backend's answer.
//   - LatencyMs:   wall time of the script call.
//   - Warnings:    the failure text, and a timeout note when the deadline hit.
//   - LastChecked: timestamp when the probe completed.
//
// # Error Model
//
// Failures return a non-nil error; the summary still carries the latency
// and warnings. ProbeAll records every summary in core.State via
// UpdateAvailability so /v1/status can show them, and joins the errors.
//
// # Implementation Notes
//
// ProbeAll fans out with an errgroup capped at Config.Concurrency. The
// executor collapses identical in-flight commands, so probing the same
// tweak twice at once costs one script run.
package probe
