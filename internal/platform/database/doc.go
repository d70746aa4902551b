// Package database implements the subscription and schedule stores on
// database/sql. Both SQLite (modernc.org/sqlite) and PostgreSQL (pgx stdlib)
// are supported through a shared query set; schema evolution is handled by
// embedded goose migrations per dialect.
package database
