// Package store provides durable storage for the mutation queue and for
// persistent navigation flows.
//
// Two backends implement the mutation persistence contract:
//   - Store: SQLite, one table per namespace (pending_mutations, failed_mutations)
//   - RedisStore: one hash per namespace (<ns>:pending, <ns>:failed)
//
// Each record is stored independently, keyed by its mutation id. Payload bytes
// are opaque here; only the registered mutation handler interprets them.
//
// # Ordering
//
// Every load returns records ordered by seq ASC, id ASC. seq is the logical
// enqueue clock, so a reload reproduces the original drain order.
//
// # Moves
//
// Moving a record between namespaces is an upsert into the target followed by
// a delete from the source, inside one transaction (SQLite) or MULTI/EXEC
// (Redis). Nothing reconciles a record that somehow exists in both namespaces.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// A single process is assumed to own the database file.
package store
