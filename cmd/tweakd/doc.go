// Command tweakd runs the kernel tweak control plane.
//
// Usage:
//
//	tweakd serve [-c config.yaml]
//	tweakd tweak set memory dirty_ratio=20 --save --apply
//	tweakd preset apply battery --save
//	tweakd features patch wireguard=1
//
// Flags:
//
//	-c, --config   YAML config layered over the built-in defaults
//	--json         machine-readable output
//	-v, --verbose  debug logging
//
// Behavior:
//
// serve loads every tweak, probes availability and blocks on SIGINT/SIGTERM
// for graceful shutdown. The binary does not daemonize itself; the module's
// service.sh starts it at boot. The other commands build the same engine,
// run one operation and exit non-zero when the backend reports failure.
package main
