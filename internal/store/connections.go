package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recruithub/internal/models"
)

// Connections is the Postgres ConnectionStore.
type Connections struct {
	db *sql.DB
}

const connectionColumns = `key, provider, script_id, expires_at, structure,
	validation_code, can_create_users, form_identifier, created_at`

func (s *Connections) Create(ctx context.Context, conn *models.FormConnection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO form_connections (
			key, provider, script_id, expires_at, structure,
			validation_code, can_create_users, form_identifier, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		conn.Key,
		string(conn.Provider),
		conn.ScriptID,
		conn.ExpiresAt,
		conn.Structure,
		conn.ValidationCode,
		conn.CanCreateUsers,
		conn.FormIdentifier,
		conn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert form connection: %w", err)
	}
	return nil
}

func (s *Connections) Get(ctx context.Context, key string) (*models.FormConnection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM form_connections WHERE key = $1`, key)
	return scanConnection(row)
}

func (s *Connections) Update(ctx context.Context, conn *models.FormConnection) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE form_connections SET
			provider = $2, script_id = $3, structure = $4,
			validation_code = $5, can_create_users = $6, form_identifier = $7
		WHERE key = $1`,
		conn.Key,
		string(conn.Provider),
		conn.ScriptID,
		conn.Structure,
		conn.ValidationCode,
		conn.CanCreateUsers,
		conn.FormIdentifier,
	)
	if err != nil {
		return fmt.Errorf("update form connection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form connection: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Consume is the single-winner gate of the handshake: DELETE .. RETURNING is
// atomic per statement, so concurrent callers for the same key cannot both
// receive the row.
func (s *Connections) Consume(ctx context.Context, key string) (*models.FormConnection, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM form_connections WHERE key = $1 RETURNING `+connectionColumns, key)
	return scanConnection(row)
}

func (s *Connections) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM form_connections WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete form connection: %w", err)
	}
	return nil
}

func scanConnection(row *sql.Row) (*models.FormConnection, error) {
	var conn models.FormConnection
	var provider string
	err := row.Scan(
		&conn.Key,
		&provider,
		&conn.ScriptID,
		&conn.ExpiresAt,
		&conn.Structure,
		&conn.ValidationCode,
		&conn.CanCreateUsers,
		&conn.FormIdentifier,
		&conn.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan form connection: %w", err)
	}
	conn.Provider = models.FormProvider(provider)
	return &conn, nil
}
