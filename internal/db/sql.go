package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juank/cpa-dashboard/backend/internal/models"
)

var clientColumns = []string{
	"user_id", "nome", "data", "registrato", "depositato", "importo", "prelievi",
	"operativo", "qualificato", "commissioni", "data_qualifica", "tempo_qual",
	"no_commissioni", "updated_at",
}

// sqlStore holds the queries shared by the Postgres and SQLite backends.
// bind renders the n-th (1-based) placeholder of the dialect.
type sqlStore struct {
	Conn *sql.DB
	bind func(n int) string
	now  func() time.Time
}

func (s *sqlStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.bind(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (s *sqlStore) upsertClientSQL() string {
	updates := make([]string, 0, len(clientColumns)-1)
	for _, col := range clientColumns[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return fmt.Sprintf(
		"INSERT INTO clients (%s) VALUES (%s) ON CONFLICT (user_id) DO UPDATE SET %s",
		strings.Join(clientColumns, ", "),
		s.placeholders(len(clientColumns)),
		strings.Join(updates, ", "),
	)
}

// UpsertClients writes all rows in one transaction; a repeated user_id in the
// batch updates the row written before it.
func (s *sqlStore) UpsertClients(ctx context.Context, clients []models.Client) error {
	if len(clients) == 0 {
		return nil
	}
	tx, err := s.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.upsertClientSQL())
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for _, c := range clients {
		_, err := stmt.ExecContext(ctx,
			c.UserID,
			nullable(c.Nome),
			nullable(c.Data),
			c.Registrato,
			c.Depositato,
			nullable(c.Importo),
			nullable(c.Prelievi),
			c.Operativo,
			c.Qualificato,
			nullable(c.Commissioni),
			nullable(c.DataQualifica),
			nullable(c.TempoQual),
			c.NoCommissioni,
			now,
		)
		if err != nil {
			return fmt.Errorf("upsert client %s: %w", c.UserID, err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) GetClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.Conn.QueryContext(ctx,
		"SELECT "+strings.Join(clientColumns, ", ")+" FROM clients ORDER BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *sqlStore) GetClient(ctx context.Context, userID string) (models.Client, error) {
	row := s.Conn.QueryRowContext(ctx,
		"SELECT "+strings.Join(clientColumns, ", ")+" FROM clients WHERE user_id = "+s.bind(1), userID)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrNotFound
	}
	return c, err
}

func (s *sqlStore) CreateUpload(ctx context.Context, upload models.Upload) error {
	_, err := s.Conn.ExecContext(ctx,
		"INSERT INTO uploads (id, registrations_file, activity_file, row_count, status, created_at) VALUES ("+s.placeholders(6)+")",
		upload.ID.String(), upload.RegistrationsFile, upload.ActivityFile, upload.Rows, upload.Status, upload.CreatedAt.UTC())
	return err
}

func (s *sqlStore) GetUploads(ctx context.Context) ([]models.Upload, error) {
	rows, err := s.Conn.QueryContext(ctx,
		"SELECT id, registrations_file, activity_file, row_count, status, created_at FROM uploads ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Upload
	for rows.Next() {
		var (
			u  models.Upload
			id string
		)
		if err := rows.Scan(&id, &u.RegistrationsFile, &u.ActivityFile, &u.Rows, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		if u.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("upload id %q: %w", id, err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.Conn.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (models.Client, error) {
	var (
		c                        models.Client
		nome                     sql.NullString
		data, dataQualifica      sql.NullTime
		importo, prelievi, comms sql.NullFloat64
		tempoQual                sql.NullInt64
	)
	err := row.Scan(
		&c.UserID, &nome, &data, &c.Registrato, &c.Depositato, &importo, &prelievi,
		&c.Operativo, &c.Qualificato, &comms, &dataQualifica, &tempoQual,
		&c.NoCommissioni, &c.UpdatedAt,
	)
	if err != nil {
		return models.Client{}, err
	}
	if nome.Valid {
		c.Nome = &nome.String
	}
	if data.Valid {
		t := data.Time.UTC()
		c.Data = &t
	}
	if dataQualifica.Valid {
		t := dataQualifica.Time.UTC()
		c.DataQualifica = &t
	}
	if importo.Valid {
		c.Importo = &importo.Float64
	}
	if prelievi.Valid {
		c.Prelievi = &prelievi.Float64
	}
	if comms.Valid {
		c.Commissioni = &comms.Float64
	}
	if tempoQual.Valid {
		n := int(tempoQual.Int64)
		c.TempoQual = &n
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// nullable turns a nil pointer into SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
