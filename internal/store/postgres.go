package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Postgres bundles the per-entity Postgres stores on a single *sql.DB.
type Postgres struct {
	db *sql.DB

	Connections *Connections
	Forms       *Forms
	Responses   *Responses
	Candidates  *Candidates
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:          db,
		Connections: &Connections{db: db},
		Forms:       &Forms{db: db},
		Responses:   &Responses{db: db},
		Candidates:  &Candidates{db: db},
	}
}

// Migrate creates the schema if it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS form_connections (
			key TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			script_id TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL,
			structure TEXT NOT NULL DEFAULT '',
			validation_code TEXT NOT NULL DEFAULT '',
			can_create_users BOOLEAN NOT NULL DEFAULT FALSE,
			form_identifier TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS forms (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			script_id TEXT NOT NULL DEFAULT '',
			structure TEXT NOT NULL DEFAULT '',
			field_mappings JSONB NOT NULL DEFAULT '{}',
			can_create_users BOOLEAN NOT NULL DEFAULT FALSE,
			form_identifier TEXT NOT NULL DEFAULT '',
			recruitment_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS forms_identifier_unique
			ON forms (form_identifier) WHERE form_identifier <> ''`,
		`CREATE TABLE IF NOT EXISTS form_responses (
			id TEXT PRIMARY KEY,
			form_id TEXT NOT NULL REFERENCES forms(id),
			respondent_email TEXT NOT NULL DEFAULT '',
			responses JSONB NOT NULL DEFAULT '{}',
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_at TIMESTAMPTZ NOT NULL,
			candidate_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS form_responses_unprocessed
			ON form_responses (form_id) WHERE processed = FALSE`,
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			recruitment_id TEXT NOT NULL,
			email TEXT NOT NULL,
			alternate_emails JSONB NOT NULL DEFAULT '[]',
			attributes JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (recruitment_id, email)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

func unmarshalMap(data []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return out, nil
}
