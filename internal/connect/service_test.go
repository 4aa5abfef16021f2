// internal/connect/service_test.go
package connect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruithub/internal/common/errors"
	"recruithub/internal/common/logger"
	"recruithub/internal/models"
	"recruithub/internal/store"
	"recruithub/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

const testRecruitmentID = "recruitment-2026"

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	mem := memory.New()
	svc := NewService(mem.Connections, mem.Forms, 5*time.Minute, testRecruitmentID, nil, logger.NewNoOpLogger())
	return svc, mem
}

func adminPrincipal() *models.Principal {
	return &models.Principal{
		Email:  "admin@example.com",
		UserID: "user-1",
		Roles:  []string{models.RoleAdmin, models.RoleRecruiter},
	}
}

func recruiterPrincipal() *models.Principal {
	return &models.Principal{
		Email:  "recruiter@example.com",
		UserID: "user-2",
		Roles:  []string{models.RoleRecruiter},
	}
}

func validStructure() string {
	return `{"title": "Volunteer signup", "fields": [{"name": "Email", "type": "text"}, {"name": "Age", "type": "number"}]}`
}

func registerInput(key string) RegisterInput {
	return RegisterInput{
		Key:            key,
		Provider:       "EXTERNAL_SHEET",
		ScriptID:       "script-001",
		Structure:      validStructure(),
		ValidationCode: "4821",
		CanCreateUsers: true,
		FormIdentifier: "signup-form",
	}
}

func assertErrorCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok, "expected StandardError, got %T", err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Init Tests
// ==========================

func TestInit_Success(t *testing.T) {
	svc, mem := newTestService(t)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	result, err := svc.Init(context.Background(), adminPrincipal())

	require.NoError(t, err)
	assert.NotEmpty(t, result.Key)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), result.ExpiresAt)

	conn, err := mem.Connections.Get(context.Background(), result.Key)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderUnset, conn.Provider)
	assert.False(t, conn.Registered())
}

func TestInit_RequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Init(context.Background(), recruiterPrincipal())
	assertErrorCode(t, err, errors.ErrCodeUnauthorized)

	_, err = svc.Init(context.Background(), nil)
	assertErrorCode(t, err, errors.ErrCodeUnauthorized)
}

// ==========================
// Register Tests
// ==========================

func TestRegister_Success(t *testing.T) {
	svc, mem := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	err = svc.Register(context.Background(), registerInput(result.Key))
	require.NoError(t, err)

	conn, err := mem.Connections.Get(context.Background(), result.Key)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderExternalSheet, conn.Provider)
	assert.Equal(t, "script-001", conn.ScriptID)
	assert.Equal(t, "4821", conn.ValidationCode)
	assert.True(t, conn.CanCreateUsers)
	assert.True(t, conn.Registered())
}

func TestRegister_UnknownKey(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Register(context.Background(), registerInput("no-such-key"))
	assertErrorCode(t, err, errors.ErrCodeNotFound)
}

func TestRegister_Expired(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	err = svc.Register(context.Background(), registerInput(result.Key))
	assertErrorCode(t, err, errors.ErrCodeConnectionExpired)
}

func TestRegister_InvalidStructure(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	tests := []struct {
		name      string
		structure string
	}{
		{"not json", "this is not json"},
		{"missing fields", `{"title": "no fields here"}`},
		{"unnamed field", `{"fields": [{"type": "text"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := registerInput(result.Key)
			in.Structure = tt.structure
			err := svc.Register(context.Background(), in)
			assertErrorCode(t, err, errors.ErrCodeInvalidStructure)
		})
	}
}

func TestRegister_LastWriteWins(t *testing.T) {
	svc, mem := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	first := registerInput(result.Key)
	require.NoError(t, svc.Register(context.Background(), first))

	second := registerInput(result.Key)
	second.ScriptID = "script-002"
	second.ValidationCode = "9999"
	require.NoError(t, svc.Register(context.Background(), second))

	conn, err := mem.Connections.Get(context.Background(), result.Key)
	require.NoError(t, err)
	assert.Equal(t, "script-002", conn.ScriptID)
	assert.Equal(t, "9999", conn.ValidationCode)
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Register(context.Background(), RegisterInput{ValidationCode: "4821"})
	assertErrorCode(t, err, errors.ErrCodeMissingField)

	err = svc.Register(context.Background(), RegisterInput{Key: "some-key"})
	assertErrorCode(t, err, errors.ErrCodeMissingField)
}

// ==========================
// Validate Tests
// ==========================

func TestValidate_FullHandshake(t *testing.T) {
	svc, mem := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	require.NoError(t, svc.Register(context.Background(), registerInput(result.Key)))

	bound, err := svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
	require.NoError(t, err)
	require.NotEmpty(t, bound.FormID)

	form, err := mem.Forms.GetByID(context.Background(), bound.FormID)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderExternalSheet, form.Provider)
	assert.Equal(t, "script-001", form.ScriptID)
	assert.Equal(t, testRecruitmentID, form.RecruitmentID)
	assert.Empty(t, form.FieldMappings)

	// The connection is consumed: a second validate must not find it.
	_, err = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
	assertErrorCode(t, err, errors.ErrCodeNotFound)
}

func TestValidate_CodeMismatch(t *testing.T) {
	svc, mem := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), registerInput(result.Key)))

	_, err = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "0000"})
	assertErrorCode(t, err, errors.ErrCodeCodeMismatch)

	// The connection survives a mismatch and the right code still works.
	_, err = mem.Connections.Get(context.Background(), result.Key)
	require.NoError(t, err)
	_, err = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
	require.NoError(t, err)
}

func TestValidate_UnregisteredConnection(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	// No Register happened yet, so even an empty code must not validate.
	_, err = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: ""})
	assertErrorCode(t, err, errors.ErrCodeCodeMismatch)
}

func TestValidate_ExpiredRegardlessOfCode(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), registerInput(result.Key)))

	svc.now = func() time.Time { return base.Add(6 * time.Minute) }
	_, err = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
	assertErrorCode(t, err, errors.ErrCodeConnectionExpired)
}

func TestValidate_RequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Validate(context.Background(), recruiterPrincipal(), ValidateInput{Key: "k", Code: "c"})
	assertErrorCode(t, err, errors.ErrCodeUnauthorized)
}

func TestValidate_UpdatesFormWithMatchingIdentifier(t *testing.T) {
	svc, mem := newTestService(t)

	existing := &models.Form{
		ID:             "form-1",
		Provider:       models.ProviderCustom,
		ScriptID:       "old-script",
		FieldMappings:  map[string]string{"Email": "email", "Age": "age"},
		FormIdentifier: "signup-form",
		RecruitmentID:  testRecruitmentID,
	}
	require.NoError(t, mem.Forms.Create(context.Background(), existing))

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), registerInput(result.Key)))

	bound, err := svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
	require.NoError(t, err)
	assert.Equal(t, "form-1", bound.FormID)

	form, err := mem.Forms.GetByID(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderExternalSheet, form.Provider)
	assert.Equal(t, "script-001", form.ScriptID)
	// Mappings configured before rebinding are preserved.
	assert.Equal(t, map[string]string{"Email": "email", "Age": "age"}, form.FieldMappings)
}

func TestValidate_AdminOverridesScriptValues(t *testing.T) {
	svc, mem := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	in := registerInput(result.Key)
	in.CanCreateUsers = false
	require.NoError(t, svc.Register(context.Background(), in))

	canCreate := true
	bound, err := svc.Validate(context.Background(), adminPrincipal(), ValidateInput{
		Key:            result.Key,
		Code:           "4821",
		FormIdentifier: "admin-chosen-form",
		CanCreateUsers: &canCreate,
	})
	require.NoError(t, err)

	form, err := mem.Forms.GetByID(context.Background(), bound.FormID)
	require.NoError(t, err)
	assert.Equal(t, "admin-chosen-form", form.FormIdentifier)
	assert.True(t, form.CanCreateUsers)
}

func TestValidate_OverrideIdentifierTargetsExistingForm(t *testing.T) {
	svc, mem := newTestService(t)

	existing := &models.Form{
		ID:             "form-1",
		FieldMappings:  map[string]string{"Email": "email"},
		FormIdentifier: "admin-chosen-form",
		RecruitmentID:  testRecruitmentID,
	}
	require.NoError(t, mem.Forms.Create(context.Background(), existing))

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)

	in := registerInput(result.Key)
	in.FormIdentifier = "what-the-script-said"
	require.NoError(t, svc.Register(context.Background(), in))

	bound, err := svc.Validate(context.Background(), adminPrincipal(), ValidateInput{
		Key:            result.Key,
		Code:           "4821",
		FormIdentifier: "admin-chosen-form",
	})
	require.NoError(t, err)
	assert.Equal(t, "form-1", bound.FormID)

	form, err := mem.Forms.GetByID(context.Background(), "form-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Email": "email"}, form.FieldMappings)
}

// ==========================
// Concurrency Tests
// ==========================

func TestValidate_SingleWinnerUnderConcurrency(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Init(context.Background(), adminPrincipal())
	require.NoError(t, err)
	require.NoError(t, svc.Register(context.Background(), registerInput(result.Key)))

	const callers = 16
	var wg sync.WaitGroup
	outcomes := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outcomes[i] = svc.Validate(context.Background(), adminPrincipal(), ValidateInput{Key: result.Key, Code: "4821"})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range outcomes {
		if err == nil {
			winners++
		} else {
			stdErr, ok := err.(*errors.StandardError)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeNotFound, stdErr.Code)
		}
	}
	assert.Equal(t, 1, winners)
}

// ==========================
// Store Behaviour Tests
// ==========================

func TestConsume_ReturnsNotFoundAfterFirstWin(t *testing.T) {
	mem := memory.New()
	conn := &models.FormConnection{Key: "abc123", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, mem.Connections.Create(context.Background(), conn))

	got, err := mem.Connections.Consume(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Key)

	_, err = mem.Connections.Consume(context.Background(), "abc123")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
