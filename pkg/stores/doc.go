// Package stores persists resolved build plans.
// It includes a SQLite-based store with WAL mode, connection pooling and
// embedded migrations, keeping one row per resolution run and an indexed
// summary row per resolved configuration.
package stores
