// Package database manages the SQLite connection and schema migrations.
//
// The connection pool is limited to a single connection because SQLite
// permits one writer; WAL mode keeps reads concurrent. Migrations are
// embedded .up.sql/.down.sql pairs applied one-per-transaction at startup.
package database
