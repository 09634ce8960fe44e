// Package feature manages kernel features that are toggled by binary
// patching the boot image rather than at runtime.
//
// # Load
//
// Load is a two-stage protocol against the feature script: "unpack" must
// print "Unpack successful", then "read_features" must print whitespace
// separated key=value tokens between ---FEATURES_START--- and
// ---FEATURES_END---. The live /proc/cmdline is read once so the view can
// flag features whose running value differs from the patched image (a
// reboot is pending). Value "0" means disabled for every feature.
//
// # Rendering
//
// Experimental items are hidden unless the experimental toggle is on or the
// feature is currently enabled. Select items get a synthetic "Disabled"
// option; experimental options are hidden unless selected. Info items are
// read-only and only get a control with the read-only override, and such
// edits are never persisted.
//
// # Patch
//
// ApplyPatch moves core.State through confirming, patching, persisting and
// done (or failed). While "patch" runs, a logrelay.Relay streams the
// backend log into the console buffer. After a "Success" patch, each
// changed save:true feature is persisted individually; failures there are
// logged and skipped because the image is already patched.
package feature
