// Package adapters provides database adapter implementations for the
// PostgreSQL record store.
//
// The adapters support pgxpool.Pool, sql.DB, and sqlx.DB behind a common
// DBAdapter interface, so the engine works with any of the three connection
// types without caring which one it was handed.
package adapters
