// Package common provides configuration structures and logging
// utilities shared across the server and client components.
//
// The package focuses on:
//   - Configuration structures for the server and client components,
//     including the protocol defaults (port, connection cap, channel
//     capacity)
//   - A custom logging implementation with consistent formatting and
//     per-package named loggers
//
// Key Components:
//
//   - ServerConfig: Listener, keyspace and TCP socket settings for a
//     server process, with the defaults the wire protocol mandates.
//
//   - ClientConfig: Connection parameters for client components.
//
//   - Logger factory: Installs itself as the global logger factory and
//     applies the configured verbosity to every named logger the
//     application uses.
package common
