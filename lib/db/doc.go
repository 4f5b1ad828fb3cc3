// Package db implements the shared in-memory keyspace: a key/value
// map with per-key time-to-live and a publish/subscribe broker.
//
// All state lives behind a single short-critical-section mutex. The
// lock is held only for the duration of a map or heap operation and
// never across a blocking call; pub/sub fan-out happens after the
// guard is released.
//
// Expiry is driven by a background purge task spawned when the
// keyspace is created. Setters that schedule a deadline earlier than
// everything currently pending wake the task through a coalescing
// notification, so bursts of writes cost one extra purge pass at
// most. Reads additionally skip entries whose deadline has passed, so
// an expired key is never observable regardless of purge timing.
//
// Lifecycle: the server owns a Holder, whose Close flips the shutdown
// flag and lets the purge task exit. All other components hold plain
// DB handles without teardown duties.
//
// Invariants maintained by this package:
//   - The expiry index holds exactly one (deadline, key) pair per key
//     with an expiry set, and that deadline equals the entry's.
//   - Entry ids increase strictly; two inserts never share an id.
//   - A key past its deadline is never returned by Get.
//   - A channel's broadcast queue exists while at least one receiver
//     is live; afterwards it is garbage-collected lazily on the next
//     Publish.
package db
