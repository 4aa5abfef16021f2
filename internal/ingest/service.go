// Package ingest receives pushed form responses and maps them onto
// candidates via the form's field mappings.
package ingest

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruithub/internal/common/errors"
	"recruithub/internal/common/logger"
	"recruithub/internal/common/metrics"
	"recruithub/internal/common/observability"
	"recruithub/internal/models"
	"recruithub/internal/store"
)

// Indexer mirrors stored responses into the search backend, best-effort.
type Indexer interface {
	IndexResponse(ctx context.Context, resp *models.FormResponse)
}

// Service implements the response ingestion pipeline.
type Service struct {
	forms         store.FormStore
	responses     store.ResponseStore
	candidates    store.CandidateStore
	recruitmentID string
	indexer       Indexer
	obs           *observability.Observability
	logger        logger.Logger

	now func() time.Time
}

func NewService(forms store.FormStore, responses store.ResponseStore, candidates store.CandidateStore, recruitmentID string, indexer Indexer, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		forms:         forms,
		responses:     responses,
		candidates:    candidates,
		recruitmentID: recruitmentID,
		indexer:       indexer,
		obs:           obs,
		logger:        log,
		now:           time.Now,
	}
}

// ReceiveInput is the payload pushed by a bound form script. The script
// identifies itself with appsScriptId, matching the register payload.
type ReceiveInput struct {
	ScriptID        string                 `json:"appsScriptId"`
	RespondentEmail string                 `json:"respondentEmail"`
	Responses       map[string]interface{} `json:"responses"`
}

// Receive persists an inbound response. It succeeds once the response is
// stored; mapping happens later, triggered by a recruiter.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (*models.FormResponse, error) {
	if in.ScriptID == "" {
		return nil, errors.NewMissingFieldError("appsScriptId")
	}
	if len(in.Responses) == 0 {
		return nil, errors.NewMissingFieldError("responses")
	}

	form, err := s.forms.GetByScriptID(ctx, in.ScriptID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewFormNotFoundError(in.ScriptID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	resp := &models.FormResponse{
		ID:              uuid.New().String(),
		FormID:          form.ID,
		RespondentEmail: strings.TrimSpace(in.RespondentEmail),
		Responses:       in.Responses,
		Processed:       false,
		SubmittedAt:     s.now().UTC(),
	}
	if err := s.responses.Create(ctx, resp); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	metrics.ResponsesIngested.Inc()
	if s.obs != nil {
		s.obs.RecordResponseIngested(ctx, "stored")
	}
	s.logger.Info("form response received", map[string]interface{}{
		"responseId": resp.ID,
		"formId":     form.ID,
		"scriptId":   in.ScriptID,
	})
	if s.indexer != nil {
		s.indexer.IndexResponse(ctx, resp)
	}
	return resp, nil
}

// ProcessResult reports the candidate a response was mapped onto.
type ProcessResult struct {
	CandidateID string `json:"candidateId"`
}

// Process maps a stored response onto a candidate using the form's field
// mappings. All coercion failures are collected and reported together;
// the response stays unprocessed until a run with zero incidents.
// Re-processing an already processed response is a no-op success.
func (s *Service) Process(ctx context.Context, principal *models.Principal, responseID string) (*ProcessResult, error) {
	if !principal.HasRole(models.RoleRecruiter) {
		return nil, errors.NewUnauthorizedError("process requires recruiter role")
	}
	start := s.now()

	resp, err := s.responses.GetByID(ctx, responseID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("response", responseID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	if resp.Processed {
		return &ProcessResult{CandidateID: resp.CandidateID}, nil
	}

	form, err := s.forms.GetByID(ctx, resp.FormID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("form", resp.FormID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	attrs, incidents := s.mapFields(form, resp)
	if len(incidents) > 0 {
		metrics.ProcessingIncidents.Add(float64(len(incidents)))
		metrics.ResponsesProcessed.WithLabelValues("incidents").Inc()
		if s.obs != nil {
			s.obs.RecordProcessingDuration(ctx, s.now().Sub(start), "incidents")
		}
		s.logger.Warn("response processing reported incidents", map[string]interface{}{
			"responseId": resp.ID,
			"incidents":  len(incidents),
		})
		return nil, errors.NewValidationIncidentsError(incidents)
	}

	email := candidateEmail(attrs, resp)
	if email == "" {
		return nil, errors.NewMissingFieldError("email")
	}

	cand, err := s.upsertCandidate(ctx, form, email, attrs)
	if err != nil {
		metrics.ResponsesProcessed.WithLabelValues("error").Inc()
		return nil, err
	}

	resp.CandidateID = cand.ID
	resp.Processed = true
	if err := s.responses.Update(ctx, resp); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	metrics.ResponsesProcessed.WithLabelValues("success").Inc()
	if s.obs != nil {
		s.obs.RecordProcessingDuration(ctx, s.now().Sub(start), "success")
	}
	s.logger.Info("response processed", map[string]interface{}{
		"responseId":  resp.ID,
		"candidateId": cand.ID,
		"processedBy": principal.Email,
	})
	return &ProcessResult{CandidateID: cand.ID}, nil
}

// ForceCreate creates a candidate from whatever fields coerce cleanly,
// ignoring incidents. Escape hatch for responses Process keeps rejecting.
func (s *Service) ForceCreate(ctx context.Context, principal *models.Principal, responseID string) (*models.Candidate, error) {
	if !principal.HasRole(models.RoleRecruiter) {
		return nil, errors.NewUnauthorizedError("create-candidate requires recruiter role")
	}

	resp, err := s.responses.GetByID(ctx, responseID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("response", responseID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	form, err := s.forms.GetByID(ctx, resp.FormID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("form", resp.FormID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	attrs, _ := s.mapFields(form, resp)
	email := candidateEmail(attrs, resp)
	if email == "" {
		return nil, errors.NewMissingFieldError("email")
	}

	now := s.now().UTC()
	cand := &models.Candidate{
		ID:            uuid.New().String(),
		RecruitmentID: s.recruitmentID,
		Email:         email,
		Attributes:    attrs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing, err := s.candidates.FindByEmail(ctx, s.recruitmentID, email); err == nil {
		mergeAttributes(existing, attrs)
		existing.UpdatedAt = now
		if err := s.candidates.Update(ctx, existing); err != nil {
			return nil, errors.NewDatabaseInsertFailedError(err)
		}
		cand = existing
	} else if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewDatabaseQueryFailedError(err)
	} else if err := s.candidates.Create(ctx, cand); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	resp.CandidateID = cand.ID
	resp.Processed = true
	if err := s.responses.Update(ctx, resp); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("candidate force-created from response", map[string]interface{}{
		"responseId":  resp.ID,
		"candidateId": cand.ID,
		"createdBy":   principal.Email,
	})
	return cand, nil
}

// AttachInput binds a response to a known candidate.
type AttachInput struct {
	ResponseID  string `json:"responseId"`
	CandidateID string `json:"candidateId"`
}

// Attach manually binds a stored response to an existing candidate,
// bypassing the mapping pipeline. The respondent address becomes an
// alternate email so future responses match automatically.
func (s *Service) Attach(ctx context.Context, principal *models.Principal, in AttachInput) error {
	if !principal.HasRole(models.RoleRecruiter) {
		return errors.NewUnauthorizedError("attach requires recruiter role")
	}
	if in.ResponseID == "" {
		return errors.NewMissingFieldError("responseId")
	}
	if in.CandidateID == "" {
		return errors.NewMissingFieldError("candidateId")
	}

	resp, err := s.responses.GetByID(ctx, in.ResponseID)
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewNotFoundError("response", in.ResponseID)
	}
	if err != nil {
		return errors.NewDatabaseQueryFailedError(err)
	}

	cand, err := s.candidates.GetByID(ctx, in.CandidateID)
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewNotFoundError("candidate", in.CandidateID)
	}
	if err != nil {
		return errors.NewDatabaseQueryFailedError(err)
	}

	if resp.RespondentEmail != "" {
		cand.AddAlternateEmail(resp.RespondentEmail)
		cand.UpdatedAt = s.now().UTC()
		if err := s.candidates.Update(ctx, cand); err != nil {
			return errors.NewDatabaseInsertFailedError(err)
		}
	}

	resp.CandidateID = cand.ID
	resp.Processed = true
	if err := s.responses.Update(ctx, resp); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("response attached to candidate", map[string]interface{}{
		"responseId":  resp.ID,
		"candidateId": cand.ID,
		"attachedBy":  principal.Email,
	})
	return nil
}

// Unprocessed lists the review queue: unprocessed responses across all
// forms of the current recruitment process.
func (s *Service) Unprocessed(ctx context.Context, principal *models.Principal) ([]*models.FormResponse, error) {
	if !principal.HasRole(models.RoleRecruiter) {
		return nil, errors.NewUnauthorizedError("unprocessed listing requires recruiter role")
	}

	formIDs, err := s.forms.IDsByRecruitment(ctx, s.recruitmentID)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	out, err := s.responses.ListUnprocessed(ctx, formIDs)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	if out == nil {
		out = []*models.FormResponse{}
	}
	return out, nil
}

// mapFields coerces every mapped response field onto its candidate
// attribute, collecting an incident per failing field.
func (s *Service) mapFields(form *models.Form, resp *models.FormResponse) (map[string]interface{}, []Incident) {
	attrs := map[string]interface{}{}
	var incidents []Incident
	for field, target := range form.FieldMappings {
		raw, ok := resp.Responses[field]
		if !ok {
			continue
		}
		value, reason := coerce(target, raw)
		if reason != "" {
			incidents = append(incidents, Incident{
				Field:    field,
				RawValue: raw,
				Reason:   reason,
			})
			continue
		}
		attrs[target] = value
	}
	return attrs, incidents
}

func (s *Service) upsertCandidate(ctx context.Context, form *models.Form, email string, attrs map[string]interface{}) (*models.Candidate, error) {
	now := s.now().UTC()

	existing, err := s.candidates.FindByEmail(ctx, s.recruitmentID, email)
	if err == nil {
		mergeAttributes(existing, attrs)
		existing.UpdatedAt = now
		if err := s.candidates.Update(ctx, existing); err != nil {
			return nil, errors.NewDatabaseInsertFailedError(err)
		}
		return existing, nil
	}
	if !stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	if !form.CanCreateUsers {
		return nil, errors.NewNotFoundError("candidate", email)
	}

	cand := &models.Candidate{
		ID:            uuid.New().String(),
		RecruitmentID: s.recruitmentID,
		Email:         email,
		Attributes:    attrs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.candidates.Create(ctx, cand); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	return cand, nil
}

func mergeAttributes(cand *models.Candidate, attrs map[string]interface{}) {
	if cand.Attributes == nil {
		cand.Attributes = map[string]interface{}{}
	}
	for k, v := range attrs {
		cand.Attributes[k] = v
	}
}

func candidateEmail(attrs map[string]interface{}, resp *models.FormResponse) string {
	if v, ok := attrs["email"].(string); ok && v != "" {
		return v
	}
	return strings.ToLower(strings.TrimSpace(resp.RespondentEmail))
}
