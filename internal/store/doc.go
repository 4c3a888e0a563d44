// Package store provides SQLite-backed durable storage for pass-event logs.
//
// The store implements an append-only log with:
//   - Runs: one record per pipeline invocation over a graph, with the graph
//     fingerprint before and after the passes
//   - Events: the decisions each pass took (folds, unrolled and skipped
//     loops), keyed by (run_id, seq)
//
// # Ordering
//
//   - Events are ordered by seq, a logical clock stamped by the pipeline,
//     never by timestamps
//   - Runs are keyed by UUIDv7, so binary ID order is creation order
//   - All queries carry an explicit ORDER BY so results are identical
//     across reads
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Passes never talk to the database. They record into an EventSink (usually
// a Buffer) and the pipeline flushes it with WriteEvents.
package store
