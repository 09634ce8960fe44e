// Package api exposes the local HTTP control plane the WebView talks to.
//
// Separation of Concerns
//
// The api package defines public JSON types (decoupled from the engine),
// maps tweak and feature views to JSON, and hosts a gin router inside a
// plain http.Server. The engine packages remain unaware of HTTP or JSON.
//
// Versioning
//
// All routes are versioned under /v1. Non-breaking additions extend types,
// while breaking changes require a new prefix (/v2). /metrics sits outside
// the version prefix.
//
// Server
//
// NewServer wires handlers and configures timeouts. Start() runs
// ListenAndServe() in a goroutine; Stop() performs graceful shutdown.
// Middleware recovers panics and logs method/path/status/duration.
//
// Error Model
//
// APIError uses a string message and a timestamp in RFC3339. Backend
// (script) failures map to 502 and never change in-memory state, so the
// WebView can retry by repeating the request. Busy controllers map to 409.
//
// Current Endpoints
//
//   - GET /v1/healthz, GET /v1/status, POST /v1/probe
//   - GET /v1/tweaks, GET|PATCH /v1/tweaks/:name
//   - POST /v1/tweaks/:name/{load,save,apply}
//   - POST /v1/presets/:name/apply, GET /v1/export, POST /v1/import
//   - GET /v1/features, POST /v1/features/load, PUT /v1/features/toggles
//   - PUT|DELETE /v1/features/pending, POST /v1/features/patch
//   - GET /v1/features/log (WebSocket)
//   - GET /metrics
package api
