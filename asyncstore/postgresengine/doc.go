// Package postgresengine provides the PostgreSQL-backed asyncstore.Store
// engine.
//
// Records live in a single document table (key TEXT PRIMARY KEY, value JSONB,
// stored_at TIMESTAMPTZ). Save is an upsert, so writes are last-write-wins by
// key and retrying a failed persistence step never corrupts state.
//
// The engine works with pgxpool.Pool, sql.DB, or sqlx.DB connections through
// the internal adapter layer.
package postgresengine
