// Package server implements the TCP server loop: a permit-capped
// accept loop, one goroutine per connection, command dispatch against
// the shared keyspace and a broadcast shutdown signal.
//
// Concurrency model:
//
//   - The accept loop acquires a permit from a counting semaphore
//     before calling Accept, so the connection cap is enforced without
//     ever over-accepting. Transient accept errors back off
//     exponentially from 1s to 64s; beyond that the listener fails.
//
//   - Each connection is served by one goroutine that processes
//     commands strictly in order. A small reader goroutine feeds
//     frames into a channel so the handler can await the shutdown
//     broadcast at the same time.
//
//   - A SUBSCRIBE command moves the connection into subscriber mode, a
//     substate multiplexing the shutdown signal, further client frames
//     and one broadcast receiver per subscribed channel over a dynamic
//     select. The connection returns to normal command mode once its
//     subscription count drops to zero.
//
// Shutdown: Run installs an interrupt/terminate handler. On signal the
// accept loop stops, every connection task exits at its next await,
// and the keyspace handle is closed, which in turn stops the purge
// task. Run returns nil on a signal-initiated shutdown.
package server
