// Package store provides document persistence for connections, forms,
// responses and candidates. The production implementation is Postgres with
// JSONB columns for map-typed fields; an in-memory implementation lives in
// store/memory.
package store

import (
	"context"
	"errors"

	"recruithub/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// ConnectionStore persists the ephemeral handshake records.
type ConnectionStore interface {
	Create(ctx context.Context, conn *models.FormConnection) error
	Get(ctx context.Context, key string) (*models.FormConnection, error)
	Update(ctx context.Context, conn *models.FormConnection) error
	// Consume atomically removes and returns the connection for key. Under
	// concurrent calls with the same key exactly one caller receives the
	// record; the rest get ErrNotFound.
	Consume(ctx context.Context, key string) (*models.FormConnection, error)
	Delete(ctx context.Context, key string) error
}

// FormStore persists the durable form bindings.
type FormStore interface {
	Create(ctx context.Context, form *models.Form) error
	GetByID(ctx context.Context, id string) (*models.Form, error)
	GetByScriptID(ctx context.Context, scriptID string) (*models.Form, error)
	GetByIdentifier(ctx context.Context, identifier string) (*models.Form, error)
	Update(ctx context.Context, form *models.Form) error
	IDsByRecruitment(ctx context.Context, recruitmentID string) ([]string, error)
}

// ResponseStore persists pushed form responses.
type ResponseStore interface {
	Create(ctx context.Context, resp *models.FormResponse) error
	GetByID(ctx context.Context, id string) (*models.FormResponse, error)
	Update(ctx context.Context, resp *models.FormResponse) error
	ListUnprocessed(ctx context.Context, formIDs []string) ([]*models.FormResponse, error)
}

// CandidateStore persists candidates keyed by recruitment + email.
type CandidateStore interface {
	Create(ctx context.Context, cand *models.Candidate) error
	GetByID(ctx context.Context, id string) (*models.Candidate, error)
	// FindByEmail matches the primary or any alternate email within one
	// recruitment process.
	FindByEmail(ctx context.Context, recruitmentID, email string) (*models.Candidate, error)
	Update(ctx context.Context, cand *models.Candidate) error
}
