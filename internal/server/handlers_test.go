// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruithub/internal/common/logger"
	"recruithub/internal/connect"
	"recruithub/internal/ingest"
	"recruithub/internal/models"
	"recruithub/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

const testRecruitmentID = "recruitment-2026"

// stubResolver maps fixed tokens to principals.
type stubResolver struct {
	sessions map[string]*models.Principal
}

func (s *stubResolver) Resolve(_ context.Context, token string) (*models.Principal, error) {
	return s.sessions[token], nil
}

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New()
	log := logger.NewNoOpLogger()

	connectSvc := connect.NewService(mem.Connections, mem.Forms, 5*time.Minute, testRecruitmentID, nil, log)
	ingestSvc := ingest.NewService(mem.Forms, mem.Responses, mem.Candidates, testRecruitmentID, nil, nil, log)

	resolver := &stubResolver{sessions: map[string]*models.Principal{
		"admin-token": {
			Email:  "admin@example.com",
			UserID: "u-1",
			Roles:  []string{models.RoleAdmin, models.RoleRecruiter},
		},
		"recruiter-token": {
			Email:  "recruiter@example.com",
			UserID: "u-2",
			Roles:  []string{models.RoleRecruiter},
		},
	}}

	return New(connectSvc, ingestSvc, resolver, log), mem
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ==========================
// Handshake Endpoint Tests
// ==========================

func TestHandshake_FullFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/init", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	init := decodeBody(t, rec)
	key := init["key"].(string)
	require.NotEmpty(t, key)

	rec = doJSON(t, srv, http.MethodPost, "/api/connect/register", "", map[string]interface{}{
		"key":            key,
		"provider":       "EXTERNAL_SHEET",
		"appsScriptId":   "script-001",
		"formData":       `{"fields":[{"name":"Email"}]}`,
		"code":           "4821",
		"canCreateUsers": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Wrong code first: conflict, connection survives.
	rec = doJSON(t, srv, http.MethodPost, "/api/connect/validate", "admin-token", map[string]string{
		"key": key, "code": "0000",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/connect/validate", "admin-token", map[string]string{
		"key": key, "code": "4821",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	validated := decodeBody(t, rec)
	assert.NotEmpty(t, validated["formId"])

	// Consumed: the same key validates only once.
	rec = doJSON(t, srv, http.MethodPost, "/api/connect/validate", "admin-token", map[string]string{
		"key": key, "code": "4821",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectInit_RequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/init", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/connect/init", "recruiter-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestConnectRegister_ExpiredIsGone(t *testing.T) {
	srv, mem := newTestServer(t)
	require.NoError(t, mem.Connections.Create(context.Background(), &models.FormConnection{
		Key:       "stale-key",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/register", "", map[string]string{
		"key":  "stale-key",
		"code": "4821",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestConnectRegister_InvalidStructure(t *testing.T) {
	srv, mem := newTestServer(t)
	require.NoError(t, mem.Connections.Create(context.Background(), &models.FormConnection{
		Key:       "fresh-key",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/register", "", map[string]string{
		"key":      "fresh-key",
		"code":     "4821",
		"formData": `{"title": "missing fields array"}`,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectRegister_UnknownKey(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/register", "", map[string]string{
		"key":  "no-such-key",
		"code": "4821",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectRegister_AcceptsScriptFieldNames(t *testing.T) {
	srv, mem := newTestServer(t)
	require.NoError(t, mem.Connections.Create(context.Background(), &models.FormConnection{
		Key:       "abc123",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	// Exactly the body an external script sends.
	rec := doJSON(t, srv, http.MethodPost, "/api/connect/register", "", map[string]interface{}{
		"key":          "abc123",
		"formData":     `{"fields":[{"name":"Email"}]}`,
		"code":         "4821",
		"appsScriptId": "script-001",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	conn, err := mem.Connections.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "4821", conn.ValidationCode)
	assert.Equal(t, "script-001", conn.ScriptID)
	assert.Equal(t, `{"fields":[{"name":"Email"}]}`, conn.Structure)
}

func TestReceiveResponse_AcceptsScriptFieldNames(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/response", "", map[string]interface{}{
		"appsScriptId":    "script-001",
		"respondentEmail": "jane@example.com",
		"responses":       map[string]interface{}{"Email": "jane@example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestConnectValidate_AdminOverridesOnWire(t *testing.T) {
	srv, mem := newTestServer(t)
	require.NoError(t, mem.Connections.Create(context.Background(), &models.FormConnection{
		Key:            "abc123",
		ExpiresAt:      time.Now().Add(time.Minute),
		ValidationCode: "4821",
		ScriptID:       "script-001",
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/validate", "admin-token", map[string]interface{}{
		"key":            "abc123",
		"code":           "4821",
		"formIdentifier": "renamed-form",
		"canCreateUsers": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	formID := decodeBody(t, rec)["formId"].(string)

	form, err := mem.Forms.GetByID(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, "renamed-form", form.FormIdentifier)
	assert.True(t, form.CanCreateUsers)
}

func TestConnectRegister_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/connect/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ==========================
// Ingestion Endpoint Tests
// ==========================

func seedBoundForm(t *testing.T, mem *memory.Store) {
	t.Helper()
	require.NoError(t, mem.Forms.Create(context.Background(), &models.Form{
		ID:       "form-1",
		ScriptID: "script-001",
		FieldMappings: map[string]string{
			"Email": "email",
			"Age":   "age",
		},
		CanCreateUsers: true,
		RecruitmentID:  testRecruitmentID,
	}))
}

func TestReceiveResponse_Success(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/response", "", map[string]interface{}{
		"appsScriptId": "script-001",
		"responses": map[string]interface{}{
			"Email": "jane@example.com",
			"Age":   "27",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["responseId"])
}

func TestReceiveResponse_UnknownScript(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/connect/response", "", map[string]interface{}{
		"appsScriptId": "no-such-script",
		"responses":    map[string]interface{}{"Email": "x@example.com"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcess_IncidentsReturn422(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)
	require.NoError(t, mem.Responses.Create(context.Background(), &models.FormResponse{
		ID:     "resp-1",
		FormID: "form-1",
		Responses: map[string]interface{}{
			"Email": "jane@example.com",
			"Age":   "thirty",
		},
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/responses/resp-1/process", "recruiter-token", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	incidents := body["incidents"].([]interface{})
	require.Len(t, incidents, 1)
	assert.NotContains(t, body, "metadata")
	incident := incidents[0].(map[string]interface{})
	assert.Equal(t, "Age", incident["field"])
	assert.Equal(t, "thirty", incident["rawValue"])
}

func TestProcess_SuccessThenUnprocessedShrinks(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)
	require.NoError(t, mem.Responses.Create(context.Background(), &models.FormResponse{
		ID:        "resp-1",
		FormID:    "form-1",
		Responses: map[string]interface{}{"Email": "jane@example.com", "Age": "27"},
	}))

	rec := doJSON(t, srv, http.MethodGet, "/api/responses/unprocessed", "recruiter-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var before []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	require.Len(t, before, 1)

	rec = doJSON(t, srv, http.MethodPost, "/api/responses/resp-1/process", "recruiter-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/responses/unprocessed", "recruiter-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	assert.Empty(t, after)
}

func TestUnprocessed_RequiresRecruiter(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/responses/unprocessed", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAttach_Success(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)
	require.NoError(t, mem.Candidates.Create(context.Background(), &models.Candidate{
		ID:            "cand-1",
		RecruitmentID: testRecruitmentID,
		Email:         "jane@example.com",
	}))
	require.NoError(t, mem.Responses.Create(context.Background(), &models.FormResponse{
		ID:        "resp-1",
		FormID:    "form-1",
		Responses: map[string]interface{}{"Age": "27"},
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/responses/resp-1/attach", "recruiter-token", map[string]string{
		"candidateId": "cand-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp, err := mem.Responses.GetByID(context.Background(), "resp-1")
	require.NoError(t, err)
	assert.True(t, resp.Processed)
	assert.Equal(t, "cand-1", resp.CandidateID)
}

func TestForceCreate_ReturnsCandidate(t *testing.T) {
	srv, mem := newTestServer(t)
	seedBoundForm(t, mem)
	require.NoError(t, mem.Responses.Create(context.Background(), &models.FormResponse{
		ID:              "resp-1",
		FormID:          "form-1",
		RespondentEmail: "jane@example.com",
		Responses:       map[string]interface{}{"Age": "thirty"},
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/responses/resp-1/create-candidate", "recruiter-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "jane@example.com", body["email"])
}

// ==========================
// Operational Endpoint Tests
// ==========================

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestSessionCookieResolvesPrincipal(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/connect/init", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "admin-token"})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("body: %s", rec.Body.String()))
}
