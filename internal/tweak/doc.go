// Package tweak implements the state engine behind every tunable card of the
// control panel (zram, memory, undervolt, display, charging, sound, I/O
// scheduler and so on).
//
// # State model
//
// Each tweak is one Controller instance built from a table-driven
// Definition. A controller owns four string maps:
//
//   - current:   live values, read with the script's get_current action
//   - saved:     persisted values, read with get_saved
//   - pending:   in-memory edits, never persisted directly
//   - reference: the baseline, resolved per field as
//     saved ?? current ?? default-preset value
//
// After Load, pending equals reference. The pending indicator is derived on
// every View as "some field's pending value differs from its reference" and
// is never stored.
//
// # Save and apply
//
// Save and Apply are separate, separately-failable operations. Save commits
// pending into saved and reference only after the script prints "saved" or
// "Saved". Apply pushes pending to the live system and, after "applied" or
// "Applied", re-reads current; it never touches saved, pending or
// reference. A failed call leaves every map exactly as it was.
//
// # Exclusive fields
//
// ExclusionPair fields (dirty_ratio/dirty_bytes) are kept mutually exclusive
// twice: SetField zeroes the sibling immediately, and Save/Apply re-force it
// when serializing arguments.
//
// # Registry
//
// Registry is built once at startup by Build and handed to whoever needs
// it. Presets and import/export go through the Descriptor interface, and
// SetState is valid before a tweak has loaded.
package tweak
