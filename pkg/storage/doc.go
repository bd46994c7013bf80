// Package storage defines the persistence contract for subscribers, sessions and
// invoices.
//
// # Overview
//
// The Store interface composes focused capabilities:
//
//   - SubscriberStore: subscriber CRUD, with delete cascading to usage records
//   - UsageReader: session queries filtered by subscriber and paid flag, invoice reads
//   - Atomically: a per-subscriber unit of work (Tx)
//
// Session creation and invoicing only happen inside Atomically. A backend must make
// calls for the same subscriber mutually exclusive and keep either all writes of a
// Tx or none of them. This is what prevents two invoices from claiming the same
// session and two concurrent simulations from overrunning the data cap.
//
// # Backend Implementations
//
// memory: maps guarded by a per-subscriber mutex. Writes are staged and applied when
// the callback returns without error. Used by tests and single-process setups.
//
//	store := memory.New()
//
// sqlstore: PostgreSQL via lib/pq or SQLite via go-sqlite3. On PostgreSQL the
// subscriber row is locked with SELECT ... FOR UPDATE for the length of the
// transaction. SQLite transactions are opened with BEGIN IMMEDIATE, which takes the
// database write lock up front.
//
//	store, err := sqlstore.Open(ctx, storage.Config{
//		Type:        "postgres",
//		PostgresURL: "postgres://localhost/matsecom?sslmode=disable",
//	})
//
// Invoices can additionally be archived to S3 through the objectstore package. The
// archive is a copy and never part of the transaction.
package storage
