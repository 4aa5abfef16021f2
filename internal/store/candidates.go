package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"recruithub/internal/models"
)

// Candidates is the Postgres CandidateStore.
type Candidates struct {
	db *sql.DB
}

const candidateColumns = `id, recruitment_id, email, alternate_emails,
	attributes, created_at, updated_at`

func (s *Candidates) Create(ctx context.Context, cand *models.Candidate) error {
	alternates, err := json.Marshal(alternateOrEmpty(cand.AlternateEmails))
	if err != nil {
		return fmt.Errorf("marshal alternate emails: %w", err)
	}
	attrs, err := marshalJSON(cand.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (
			id, recruitment_id, email, alternate_emails, attributes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		cand.ID,
		cand.RecruitmentID,
		cand.Email,
		alternates,
		attrs,
		cand.CreatedAt,
		cand.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *Candidates) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	return scanCandidate(row)
}

// FindByEmail matches the primary email or any member of the alternate email
// list, case-insensitively, within one recruitment process.
func (s *Candidates) FindByEmail(ctx context.Context, recruitmentID, email string) (*models.Candidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE recruitment_id = $1
		  AND (LOWER(email) = LOWER($2)
		       OR EXISTS (
				SELECT 1 FROM jsonb_array_elements_text(alternate_emails) alt
				WHERE LOWER(alt) = LOWER($2)))`,
		recruitmentID, email)
	return scanCandidate(row)
}

func (s *Candidates) Update(ctx context.Context, cand *models.Candidate) error {
	alternates, err := json.Marshal(alternateOrEmpty(cand.AlternateEmails))
	if err != nil {
		return fmt.Errorf("marshal alternate emails: %w", err)
	}
	attrs, err := marshalJSON(cand.Attributes)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE candidates SET
			email = $2, alternate_emails = $3, attributes = $4, updated_at = $5
		WHERE id = $1`,
		cand.ID,
		cand.Email,
		alternates,
		attrs,
		cand.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func alternateOrEmpty(emails []string) []string {
	if emails == nil {
		return []string{}
	}
	return emails
}

func scanCandidate(row *sql.Row) (*models.Candidate, error) {
	var cand models.Candidate
	var alternates, attrs []byte
	err := row.Scan(
		&cand.ID,
		&cand.RecruitmentID,
		&cand.Email,
		&alternates,
		&attrs,
		&cand.CreatedAt,
		&cand.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	if len(alternates) > 0 {
		if err := json.Unmarshal(alternates, &cand.AlternateEmails); err != nil {
			return nil, fmt.Errorf("unmarshal alternate emails: %w", err)
		}
	}
	cand.Attributes, err = unmarshalMap(attrs)
	if err != nil {
		return nil, err
	}
	return &cand, nil
}
