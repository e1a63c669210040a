// Package history records subscription status changes for the admin console.
//
// Recorder adapts a Store into a subsync.Hook. PostgresStore is the
// production store; its schema ships as goose migrations returned by
// Migrations and applied with pg.Migrate at startup. MemoryStore keeps a
// bounded per-user log for development without a database.
package history
