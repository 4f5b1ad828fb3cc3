// Package util provides the concurrency and indexing primitives used
// by the keyspace implementation in lib/db.
//
// The package contains:
//   - mapheap: A priority queue over (deadline, key) pairs with key-based
//     access, used as the TTL expiry index
//   - broadcast: A bounded, lossy fan-out queue with per-receiver lag
//     accounting, used by the pub/sub broker
//   - notify: An idempotent single-slot wakeup primitive that coalesces
//     purge-task wakeups
//
// None of these components depend on the keyspace itself; they can be
// reused by any component that needs prioritized deadlines, lossy
// fan-out, or coalesced notifications.
package util
