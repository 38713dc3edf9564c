package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		user_id        TEXT PRIMARY KEY,
		nome           TEXT,
		data           DATETIME,
		registrato     BOOLEAN NOT NULL DEFAULT 0,
		depositato     BOOLEAN NOT NULL DEFAULT 0,
		importo        REAL,
		prelievi       REAL,
		operativo      BOOLEAN NOT NULL DEFAULT 0,
		qualificato    BOOLEAN NOT NULL DEFAULT 0,
		commissioni    REAL,
		data_qualifica DATETIME,
		tempo_qual     INTEGER,
		no_commissioni BOOLEAN NOT NULL DEFAULT 0,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id                 TEXT PRIMARY KEY,
		registrations_file TEXT NOT NULL,
		activity_file      TEXT NOT NULL,
		row_count          INTEGER NOT NULL,
		status             TEXT NOT NULL,
		created_at         DATETIME NOT NULL
	)`,
}

// SQLiteDB is the single-file store for running the dashboard without a
// database server.
type SQLiteDB struct {
	sqlStore
}

// OpenSQLite opens (or creates) the database file at path. ":memory:" keeps
// it in RAM.
func OpenSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writes.
	conn.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	return &SQLiteDB{sqlStore{
		Conn: conn,
		bind: func(int) string { return "?" },
		now:  time.Now,
	}}, nil
}
