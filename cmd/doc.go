// Package cmd implements the command-line interface for the mKV
// in-memory key-value server. It provides a command structure with
// operations for running the server and interacting with it as a
// client.
//
// The package is organized into several subpackages:
//
//   - kv: Client commands for the protocol operations (ping, get, set,
//     publish, subscribe) plus a perf tool
//   - serve: Commands for starting and configuring the mKV server
//   - util: Shared utilities for command-line processing and
//     configuration (internal use)
//
// All client commands honor the global --host and --port flags as well
// as the matching MKV_HOST and MKV_PORT environment variables; logging
// verbosity is controlled via --log-level or MKV_LOG_LEVEL.
//
// See mkv --help for a list of all commands.
package cmd
