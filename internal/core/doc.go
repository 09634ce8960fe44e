// Package core owns the daemon's shared state.
//
// Overview
//
// Per-tweak reconciliation state lives in each tweak controller. What is
// left for core is the state shared across the whole control panel: the
// user-visible notice history, capability probe outcomes, and the feature
// patch state machine. It provides a single concurrency boundary: methods
// on *State.
//
// Concurrency & Safety
//
// State is safe for concurrent use. Read access is via GetSnapshot(), which
// returns a deep copy suitable for use without further locking. Mutation is
// done via narrow methods, each holding the internal lock briefly. Callers
// must never take the lock directly.
//
// Patch lifecycle
//
// PatchPhase reflects a feature patch run:
//   idle       -> confirming
//   confirming -> patching | idle
//   patching   -> persisting | failed
//   persisting -> done
//   done       -> idle | confirming
//   failed     -> idle | confirming
//
// BeginPatch opens a run in the confirming phase and SetPatchPhase enforces
// the remaining edges. Done and Failed are terminal for a run; a new run may
// begin from either.
//
// Notices
//
// Notify records toast-style messages (success, info, error) tagged with
// their source tweak. History is bounded by MaxNotices.
package core
