// Package store is the SQLite execution target for compiled queries and
// bulk mutations.
//
// The store owns everything the query layer treats as opaque: the
// connection, the table layout, and SQL execution. Callers hand it queryir
// nodes; it compiles them with internal/querysql and returns rows as
// positional ir values.
//
// # Tables
//
//   - team, member: the entity tables described by the default catalog
//   - invalidations: append-only journal of cache invalidation signals
//
// # Deterministic Results
//
// Every compiled SELECT ends its ORDER BY with a unique key, and the
// journal is read ORDER BY seq ASC, id COLLATE BINARY ASC, so repeated
// reads of unchanged data return rows in identical order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: SQLite allows a single writer
package store
