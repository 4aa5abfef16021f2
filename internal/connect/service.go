// Package connect implements the external form-provider connection
// handshake: an admin opens a short-lived keyed connection, the provider
// script registers its form against the key, and the admin validates the
// announced code to bind the form.
package connect

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"recruithub/internal/common/errors"
	"recruithub/internal/common/logger"
	"recruithub/internal/common/metrics"
	"recruithub/internal/common/validation"
	"recruithub/internal/models"
	"recruithub/internal/store"
)

// Notifier delivers best-effort notifications about bound forms.
type Notifier interface {
	NotifyFormBound(ctx context.Context, form *models.Form)
}

// Service implements the connection handshake operations.
type Service struct {
	connections   store.ConnectionStore
	forms         store.FormStore
	ttl           time.Duration
	recruitmentID string
	notifier      Notifier
	logger        logger.Logger

	now func() time.Time
}

func NewService(connections store.ConnectionStore, forms store.FormStore, ttl time.Duration, recruitmentID string, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		connections:   connections,
		forms:         forms,
		ttl:           ttl,
		recruitmentID: recruitmentID,
		notifier:      notifier,
		logger:        log,
		now:           time.Now,
	}
}

// InitResult is returned to the admin starting a handshake.
type InitResult struct {
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Init opens a new pending connection with a fresh random key.
func (s *Service) Init(ctx context.Context, principal *models.Principal) (*InitResult, error) {
	if !principal.HasRole(models.RoleAdmin) {
		return nil, errors.NewUnauthorizedError("connect init requires admin role")
	}

	now := s.now().UTC()
	conn := &models.FormConnection{
		Key:       uuid.New().String(),
		Provider:  models.ProviderUnset,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("connection initialized", map[string]interface{}{
		"key":       conn.Key,
		"expiresAt": conn.ExpiresAt,
	})
	return &InitResult{Key: conn.Key, ExpiresAt: conn.ExpiresAt}, nil
}

// RegisterInput is the payload pushed by the provider script. Field names
// follow the wire protocol the scripts speak: the layout travels as
// formData, the announced one-time code as code, the script instance as
// appsScriptId.
type RegisterInput struct {
	Key            string `json:"key"`
	Provider       string `json:"provider"`
	ScriptID       string `json:"appsScriptId"`
	Structure      string `json:"formData"`
	ValidationCode string `json:"code"`
	CanCreateUsers bool   `json:"canCreateUsers"`
	FormIdentifier string `json:"formIdentifier"`
}

// Register attaches the script's form data to a pending connection. The
// script may retry; the last write wins.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if in.Key == "" {
		return errors.NewMissingFieldError("key")
	}
	if in.ValidationCode == "" {
		return errors.NewMissingFieldError("code")
	}

	conn, err := s.connections.Get(ctx, in.Key)
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.NewNotFoundError("connection", in.Key)
	}
	if err != nil {
		return errors.NewDatabaseQueryFailedError(err)
	}
	if conn.IsExpired(s.now()) {
		s.dropExpired(ctx, in.Key)
		return errors.NewConnectionExpiredError(in.Key)
	}

	if in.Structure != "" {
		violations, err := validation.ValidateStructure(in.Structure)
		if err != nil {
			return errors.NewInvalidStructureError(err.Error())
		}
		if len(violations) > 0 {
			return errors.NewInvalidStructureError(validation.FormatViolations(violations))
		}
	}

	conn.Provider = models.FormProvider(in.Provider)
	conn.ScriptID = in.ScriptID
	conn.Structure = in.Structure
	conn.ValidationCode = in.ValidationCode
	conn.CanCreateUsers = in.CanCreateUsers
	conn.FormIdentifier = in.FormIdentifier
	if err := s.connections.Update(ctx, conn); err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewNotFoundError("connection", in.Key)
		}
		return errors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("connection registered", map[string]interface{}{
		"key":      in.Key,
		"provider": in.Provider,
		"scriptId": in.ScriptID,
	})
	return nil
}

// ValidateInput is the admin's confirmation of the code shown by the
// script. FormIdentifier and CanCreateUsers optionally override what the
// script announced during Register.
type ValidateInput struct {
	Key            string `json:"key"`
	Code           string `json:"code"`
	FormIdentifier string `json:"formIdentifier,omitempty"`
	CanCreateUsers *bool  `json:"canCreateUsers,omitempty"`
}

// ValidateResult reports the bound form.
type ValidateResult struct {
	FormID string `json:"formId"`
}

// Validate checks the announced code and binds the registered form. The
// connection is consumed atomically, so of several concurrent validations
// for the same key exactly one succeeds.
func (s *Service) Validate(ctx context.Context, principal *models.Principal, in ValidateInput) (*ValidateResult, error) {
	if !principal.HasRole(models.RoleAdmin) {
		return nil, errors.NewUnauthorizedError("connect validate requires admin role")
	}
	if in.Key == "" {
		return nil, errors.NewMissingFieldError("key")
	}

	conn, err := s.connections.Get(ctx, in.Key)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("connection", in.Key)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	if conn.IsExpired(s.now()) {
		s.dropExpired(ctx, in.Key)
		return nil, errors.NewConnectionExpiredError(in.Key)
	}
	if !conn.Registered() || conn.ValidationCode != in.Code {
		return nil, errors.NewCodeMismatchError()
	}

	// Single-winner gate: between the check above and here another caller
	// may have consumed the connection, in which case we lose cleanly.
	conn, err = s.connections.Consume(ctx, in.Key)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewNotFoundError("connection", in.Key)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	// Admin-supplied overrides win over what the script announced.
	if in.FormIdentifier != "" {
		conn.FormIdentifier = in.FormIdentifier
	}
	if in.CanCreateUsers != nil {
		conn.CanCreateUsers = *in.CanCreateUsers
	}

	form, err := s.bindForm(ctx, conn)
	if err != nil {
		return nil, err
	}

	metrics.ConnectionsBound.Inc()
	s.logger.Info("form bound", map[string]interface{}{
		"formId":   form.ID,
		"scriptId": form.ScriptID,
		"boundBy":  principal.Email,
	})
	if s.notifier != nil {
		s.notifier.NotifyFormBound(ctx, form)
	}
	return &ValidateResult{FormID: form.ID}, nil
}

// dropExpired removes an expired connection found during lookup. There is
// no background sweep; expiry is enforced at read time.
func (s *Service) dropExpired(ctx context.Context, key string) {
	if err := s.connections.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete expired connection", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// bindForm updates the form matching the connection's identifier in place,
// preserving its field mappings, or creates a new one.
func (s *Service) bindForm(ctx context.Context, conn *models.FormConnection) (*models.Form, error) {
	now := s.now().UTC()

	if conn.FormIdentifier != "" {
		existing, err := s.forms.GetByIdentifier(ctx, conn.FormIdentifier)
		if err == nil {
			existing.Provider = conn.Provider
			existing.ScriptID = conn.ScriptID
			existing.Structure = conn.Structure
			existing.CanCreateUsers = conn.CanCreateUsers
			existing.UpdatedAt = now
			if err := s.forms.Update(ctx, existing); err != nil {
				return nil, errors.NewDatabaseInsertFailedError(err)
			}
			return existing, nil
		}
		if !stderrors.Is(err, store.ErrNotFound) {
			return nil, errors.NewDatabaseQueryFailedError(err)
		}
	}

	form := &models.Form{
		ID:             uuid.New().String(),
		Provider:       conn.Provider,
		ScriptID:       conn.ScriptID,
		Structure:      conn.Structure,
		FieldMappings:  map[string]string{},
		CanCreateUsers: conn.CanCreateUsers,
		FormIdentifier: conn.FormIdentifier,
		RecruitmentID:  s.recruitmentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}
	return form, nil
}
