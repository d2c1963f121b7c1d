// Package store holds the embedded package database: media descriptors,
// package rows, peer records, and transaction audit rows. It is backed by
// database/sql against modernc.org/sqlite (pure-Go, no cgo).
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS media (
	name          TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	enabled       INTEGER NOT NULL DEFAULT 1,
	update_media  INTEGER NOT NULL DEFAULT 0,
	last_sync     INTEGER,
	package_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS packages (
	name    TEXT NOT NULL,
	epoch   TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL,
	release TEXT NOT NULL,
	arch    TEXT NOT NULL,
	url     TEXT NOT NULL,
	filename TEXT NOT NULL,
	size    INTEGER NOT NULL DEFAULT 0,
	media   TEXT NOT NULL REFERENCES media(name),
	summary TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (name, epoch, version, release, arch)
);
CREATE INDEX IF NOT EXISTS idx_packages_media ON packages(media);
CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);

CREATE TABLE IF NOT EXISTS peers (
	host      TEXT NOT NULL,
	port      INTEGER NOT NULL,
	media     TEXT NOT NULL DEFAULT '',
	last_seen INTEGER NOT NULL,
	PRIMARY KEY (host, port)
);

CREATE TABLE IF NOT EXISTS transactions (
	id      TEXT PRIMARY KEY,
	kind    TEXT NOT NULL,
	media   TEXT NOT NULL DEFAULT '',
	detail  TEXT NOT NULL DEFAULT '',
	at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_at ON transactions(at);
`

// DB wraps a *sql.DB handle against the package database file. Each
// component that needs store access opens its own handle via Open; the
// underlying sqlite driver tolerates multiple handles against one file as
// long as writers serialize (WAL mode, enabled below, makes concurrent
// readers cheap).
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the database file at path, enables WAL
// mode, and ensures the schema exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := sqlDB.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &DB{sql: sqlDB}, nil
}

// Close releases the underlying handle. Every component that opened a
// handle must close it at shutdown.
func (d *DB) Close() error {
	return d.sql.Close()
}
