package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"recruithub/internal/models"
)

// Responses is the Postgres ResponseStore.
type Responses struct {
	db *sql.DB
}

const responseColumns = `id, form_id, respondent_email, responses, processed,
	submitted_at, candidate_id`

func (s *Responses) Create(ctx context.Context, resp *models.FormResponse) error {
	answers, err := marshalJSON(resp.Responses)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_responses (
			id, form_id, respondent_email, responses, processed,
			submitted_at, candidate_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resp.ID,
		resp.FormID,
		resp.RespondentEmail,
		answers,
		resp.Processed,
		resp.SubmittedAt,
		resp.CandidateID,
	)
	if err != nil {
		return fmt.Errorf("insert form response: %w", err)
	}
	return nil
}

func (s *Responses) GetByID(ctx context.Context, id string) (*models.FormResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+responseColumns+` FROM form_responses WHERE id = $1`, id)
	resp, err := scanResponse(row.Scan)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Responses) Update(ctx context.Context, resp *models.FormResponse) error {
	answers, err := marshalJSON(resp.Responses)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE form_responses SET
			respondent_email = $2, responses = $3, processed = $4, candidate_id = $5
		WHERE id = $1`,
		resp.ID,
		resp.RespondentEmail,
		answers,
		resp.Processed,
		resp.CandidateID,
	)
	if err != nil {
		return fmt.Errorf("update form response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update form response: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Responses) ListUnprocessed(ctx context.Context, formIDs []string) ([]*models.FormResponse, error) {
	if len(formIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(formIDs))
	args := make([]interface{}, len(formIDs))
	for i, id := range formIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `SELECT ` + responseColumns + ` FROM form_responses
		WHERE processed = FALSE AND form_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY submitted_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed responses: %w", err)
	}
	defer rows.Close()

	var out []*models.FormResponse
	for rows.Next() {
		resp, err := scanResponse(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unprocessed responses: %w", err)
	}
	return out, nil
}

func scanResponse(scan func(...interface{}) error) (*models.FormResponse, error) {
	var resp models.FormResponse
	var answers []byte
	err := scan(
		&resp.ID,
		&resp.FormID,
		&resp.RespondentEmail,
		&answers,
		&resp.Processed,
		&resp.SubmittedAt,
		&resp.CandidateID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan form response: %w", err)
	}
	resp.Responses, err = unmarshalMap(answers)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
