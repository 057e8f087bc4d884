// Package cli implements the gea command-line interface.
//
// Each cobra command is a thin wrapper that builds an options struct and
// hands it to a xxxCommand function, which does the work against the
// capture, doctor and lock packages. Tests call those functions directly.
//
// # Commands
//
//	gea append [content]   - Save a record to its category file
//	gea stats              - Count lines per category file
//	gea template <cat>     - Print the suggested record format
//	gea doctor             - Diagnose config and remote access
//	gea unlock [cat]       - Remove a leftover file lock
//	gea init               - Create gea.yaml
//
// # Output
//
// Human output goes to stdout, progress and logs to stderr. With --json
// every command writes a single JSON envelope to stdout instead, and
// errors are reported inside that envelope with a stable code.
package cli
