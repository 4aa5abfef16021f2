package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"recruithub/internal/models"
)

// Forms is the Postgres FormStore.
type Forms struct {
	db *sql.DB
}

const formColumns = `id, provider, script_id, structure, field_mappings,
	can_create_users, form_identifier, recruitment_id, created_at, updated_at`

func (s *Forms) Create(ctx context.Context, form *models.Form) error {
	mappings, err := json.Marshal(form.FieldMappings)
	if err != nil {
		return fmt.Errorf("marshal field mappings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (
			id, provider, script_id, structure, field_mappings,
			can_create_users, form_identifier, recruitment_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		form.ID,
		string(form.Provider),
		form.ScriptID,
		form.Structure,
		mappings,
		form.CanCreateUsers,
		form.FormIdentifier,
		form.RecruitmentID,
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert form: %w", err)
	}
	return nil
}

func (s *Forms) GetByID(ctx context.Context, id string) (*models.Form, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE id = $1`, id)
	return scanForm(row)
}

func (s *Forms) GetByScriptID(ctx context.Context, scriptID string) (*models.Form, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE script_id = $1`, scriptID)
	return scanForm(row)
}

func (s *Forms) GetByIdentifier(ctx context.Context, identifier string) (*models.Form, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE form_identifier = $1 AND form_identifier <> ''`,
		identifier)
	return scanForm(row)
}

func (s *Forms) Update(ctx context.Context, form *models.Form) error {
	mappings, err := json.Marshal(form.FieldMappings)
	if err != nil {
		return fmt.Errorf("marshal field mappings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE forms SET
			provider = $2, script_id = $3, structure = $4, field_mappings = $5,
			can_create_users = $6, form_identifier = $7, recruitment_id = $8,
			updated_at = $9
		WHERE id = $1`,
		form.ID,
		string(form.Provider),
		form.ScriptID,
		form.Structure,
		mappings,
		form.CanCreateUsers,
		form.FormIdentifier,
		form.RecruitmentID,
		form.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Forms) IDsByRecruitment(ctx context.Context, recruitmentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM forms WHERE recruitment_id = $1`, recruitmentID)
	if err != nil {
		return nil, fmt.Errorf("query forms by recruitment: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan form id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form ids: %w", err)
	}
	return ids, nil
}

func scanForm(row *sql.Row) (*models.Form, error) {
	var form models.Form
	var provider string
	var mappings []byte
	err := row.Scan(
		&form.ID,
		&provider,
		&form.ScriptID,
		&form.Structure,
		&mappings,
		&form.CanCreateUsers,
		&form.FormIdentifier,
		&form.RecruitmentID,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan form: %w", err)
	}
	form.Provider = models.FormProvider(provider)
	form.FieldMappings = map[string]string{}
	if len(mappings) > 0 {
		if err := json.Unmarshal(mappings, &form.FieldMappings); err != nil {
			return nil, fmt.Errorf("unmarshal field mappings: %w", err)
		}
	}
	return &form, nil
}
