// Package memory provides mutex-guarded in-memory implementations of the
// store interfaces, used by tests and local development.
package memory

import (
	"context"
	"sync"

	"recruithub/internal/models"
	"recruithub/internal/store"
)

// Store bundles the in-memory per-entity stores.
type Store struct {
	Connections *Connections
	Forms       *Forms
	Responses   *Responses
	Candidates  *Candidates
}

func New() *Store {
	return &Store{
		Connections: &Connections{items: map[string]models.FormConnection{}},
		Forms:       &Forms{items: map[string]models.Form{}},
		Responses:   &Responses{items: map[string]models.FormResponse{}},
		Candidates:  &Candidates{items: map[string]models.Candidate{}},
	}
}

// ============================================================
// Connections
// ============================================================

type Connections struct {
	mu    sync.Mutex
	items map[string]models.FormConnection
}

func (s *Connections) Create(_ context.Context, conn *models.FormConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[conn.Key] = *conn
	return nil
}

func (s *Connections) Get(_ context.Context, key string) (*models.FormConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &conn, nil
}

func (s *Connections) Update(_ context.Context, conn *models.FormConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[conn.Key]; !ok {
		return store.ErrNotFound
	}
	s.items[conn.Key] = *conn
	return nil
}

// Consume removes and returns the connection under the lock, so concurrent
// callers for the same key see exactly one winner.
func (s *Connections) Consume(_ context.Context, key string) (*models.FormConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(s.items, key)
	return &conn, nil
}

func (s *Connections) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// ============================================================
// Forms
// ============================================================

type Forms struct {
	mu    sync.Mutex
	items map[string]models.Form
}

func (s *Forms) Create(_ context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[form.ID] = copyForm(form)
	return nil
}

func (s *Forms) GetByID(_ context.Context, id string) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	form, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyForm(&form)
	return &out, nil
}

func (s *Forms) GetByScriptID(_ context.Context, scriptID string) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, form := range s.items {
		if form.ScriptID == scriptID {
			out := copyForm(&form)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Forms) GetByIdentifier(_ context.Context, identifier string) (*models.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identifier == "" {
		return nil, store.ErrNotFound
	}
	for _, form := range s.items {
		if form.FormIdentifier == identifier {
			out := copyForm(&form)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Forms) Update(_ context.Context, form *models.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[form.ID]; !ok {
		return store.ErrNotFound
	}
	s.items[form.ID] = copyForm(form)
	return nil
}

func (s *Forms) IDsByRecruitment(_ context.Context, recruitmentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, form := range s.items {
		if form.RecruitmentID == recruitmentID {
			ids = append(ids, form.ID)
		}
	}
	return ids, nil
}

func copyForm(form *models.Form) models.Form {
	out := *form
	out.FieldMappings = map[string]string{}
	for k, v := range form.FieldMappings {
		out.FieldMappings[k] = v
	}
	return out
}

// ============================================================
// Responses
// ============================================================

type Responses struct {
	mu    sync.Mutex
	items map[string]models.FormResponse
}

func (s *Responses) Create(_ context.Context, resp *models.FormResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[resp.ID] = copyResponse(resp)
	return nil
}

func (s *Responses) GetByID(_ context.Context, id string) (*models.FormResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyResponse(&resp)
	return &out, nil
}

func (s *Responses) Update(_ context.Context, resp *models.FormResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[resp.ID]; !ok {
		return store.ErrNotFound
	}
	s.items[resp.ID] = copyResponse(resp)
	return nil
}

func (s *Responses) ListUnprocessed(_ context.Context, formIDs []string) ([]*models.FormResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range formIDs {
		wanted[id] = true
	}
	var out []*models.FormResponse
	for _, resp := range s.items {
		if !resp.Processed && wanted[resp.FormID] {
			c := copyResponse(&resp)
			out = append(out, &c)
		}
	}
	return out, nil
}

func copyResponse(resp *models.FormResponse) models.FormResponse {
	out := *resp
	out.Responses = map[string]interface{}{}
	for k, v := range resp.Responses {
		out.Responses[k] = v
	}
	return out
}

// ============================================================
// Candidates
// ============================================================

type Candidates struct {
	mu    sync.Mutex
	items map[string]models.Candidate
}

func (s *Candidates) Create(_ context.Context, cand *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[cand.ID] = copyCandidate(cand)
	return nil
}

func (s *Candidates) GetByID(_ context.Context, id string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cand, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyCandidate(&cand)
	return &out, nil
}

func (s *Candidates) FindByEmail(_ context.Context, recruitmentID, email string) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cand := range s.items {
		if cand.RecruitmentID != recruitmentID {
			continue
		}
		if cand.HasEmail(email) {
			out := copyCandidate(&cand)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Candidates) Update(_ context.Context, cand *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[cand.ID]; !ok {
		return store.ErrNotFound
	}
	s.items[cand.ID] = copyCandidate(cand)
	return nil
}

func copyCandidate(cand *models.Candidate) models.Candidate {
	out := *cand
	out.AlternateEmails = append([]string(nil), cand.AlternateEmails...)
	out.Attributes = map[string]interface{}{}
	for k, v := range cand.Attributes {
		out.Attributes[k] = v
	}
	return out
}
