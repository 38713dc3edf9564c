package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/config"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS clients (
	user_id        TEXT PRIMARY KEY,
	nome           TEXT,
	data           TIMESTAMPTZ,
	registrato     BOOLEAN NOT NULL DEFAULT FALSE,
	depositato     BOOLEAN NOT NULL DEFAULT FALSE,
	importo        DOUBLE PRECISION,
	prelievi       DOUBLE PRECISION,
	operativo      BOOLEAN NOT NULL DEFAULT FALSE,
	qualificato    BOOLEAN NOT NULL DEFAULT FALSE,
	commissioni    DOUBLE PRECISION,
	data_qualifica TIMESTAMPTZ,
	tempo_qual     INTEGER,
	no_commissioni BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS uploads (
	id                 UUID PRIMARY KEY,
	registrations_file TEXT NOT NULL,
	activity_file      TEXT NOT NULL,
	row_count          INTEGER NOT NULL,
	status             TEXT NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL
);`

type PostgresDB struct {
	sqlStore
}

// Connect opens the store selected by cfg.Driver.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN())
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.DriverMemory, "":
		return NewMemoryDB(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// OpenPostgres connects with lib/pq and creates the tables if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresDB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := conn.ExecContext(ctx, postgresSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &PostgresDB{sqlStore{
		Conn: conn,
		bind: func(n int) string { return fmt.Sprintf("$%d", n) },
		now:  time.Now,
	}}, nil
}
