package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorstack/mentor-engine/pkg/auth"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
)

func newStack(t *testing.T) *testStack {
	t.Helper()
	stack, err := newTestStack()
	require.NoError(t, err)
	return stack
}

func doJSON(t *testing.T, stack *testStack, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	stack.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func registerUser(t *testing.T, stack *testStack, username, tier string) *auth.TokenPair {
	t.Helper()
	rec := doJSON(t, stack, http.MethodPost, "/auth/register", "", map[string]string{
		"username":   username,
		"credential": "correct-horse",
		"tier":       tier,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return &pair
}

func TestHealthAndPing(t *testing.T) {
	stack := newStack(t)

	rec := doJSON(t, stack, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = doJSON(t, stack, http.MethodGet, "/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "mentor-engine", body["service"])
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterReturnsTokenPair(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	require.NotNil(t, pair.User)
	assert.Equal(t, "alice", pair.User.Username)
	assert.Empty(t, pair.User.CredentialHash, "hash must not leave the server")
}

func TestRegisterValidation(t *testing.T) {
	stack := newStack(t)

	rec := doJSON(t, stack, http.MethodPost, "/auth/register", "", map[string]string{
		"username":   "x",
		"credential": "correct-horse",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation_error", body["error"])

	rec = doJSON(t, stack, http.MethodPost, "/auth/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	stack := newStack(t)
	registerUser(t, stack, "alice", "free")

	rec := doJSON(t, stack, http.MethodPost, "/auth/login", "", map[string]string{
		"username":   "alice",
		"credential": "correct-horse",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Wrong credential and unknown user surface identically as 401.
	for _, creds := range []map[string]string{
		{"username": "alice", "credential": "wrong"},
		{"username": "nobody", "credential": "correct-horse"},
	} {
		rec = doJSON(t, stack, http.MethodPost, "/auth/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "invalid_credentials", body["code"])
	}
}

func TestRefreshRotation(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	rec := doJSON(t, stack, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rotated auth.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The spent token is revoked, not reusable.
	rec = doJSON(t, stack, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token_revoked", decodeBody(t, rec)["code"])

	// The rotated token still works.
	rec = doJSON(t, stack, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": rotated.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	rec := doJSON(t, stack, http.MethodPost, "/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, stack, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCapabilityListRequiresAuth(t *testing.T) {
	stack := newStack(t)

	rec := doJSON(t, stack, http.MethodGet, "/api/capabilities", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	pair := registerUser(t, stack, "alice", "free")
	rec = doJSON(t, stack, http.MethodGet, "/api/capabilities", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Capabilities []orchestrator.Info `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.NotEmpty(t, listing.Capabilities)
	names := make([]string, 0, len(listing.Capabilities))
	for _, c := range listing.Capabilities {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "project.create")
	assert.Contains(t, names, "socratic.start")
	assert.Contains(t, names, "monitor.usage")
	assert.True(t, sortedStrings(names), "listing must be sorted: %v", names)
}

func sortedStrings(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			return false
		}
	}
	return true
}

func TestInvokeProjectLifecycle(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	rec := doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, map[string]string{"name": "atlas"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	project, ok := body["data"].(map[string]any)
	require.True(t, ok, "data envelope missing: %v", body)
	projectID, _ := project["id"].(string)
	assert.True(t, strings.HasPrefix(projectID, "proj_"), "got id %q", projectID)

	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/project.get",
		pair.AccessToken, map[string]string{"project_id": projectID})
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "atlas", fetched["name"])
	assert.Equal(t, "alice", fetched["owner_username"])
}

func TestInvokeErrorTaxonomyStatuses(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	// Unknown capability.
	rec := doJSON(t, stack, http.MethodPost, "/api/capabilities/no.such", pair.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_capability", decodeBody(t, rec)["error"])

	// Tier gate on a pro capability invoked by a free account.
	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/context.analyze",
		pair.AccessToken, map[string]string{"project_id": "proj_x"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "subscription_required", decodeBody(t, rec)["error"])

	// Validation failure.
	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody(t, rec)["error"])

	// Business failure: duplicate project name.
	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, map[string]string{"name": "atlas"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, map[string]string{"name": "atlas"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "business_error", body["error"])
	assert.Equal(t, "duplicate_name", body["code"])

	// Missing token.
	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		"", map[string]string{"name": "solo"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvokeProCapabilityWithProTier(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "carol", "pro")

	rec := doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, map[string]string{"name": "atlas"})
	require.Equal(t, http.StatusOK, rec.Code)
	projectID := decodeBody(t, rec)["data"].(map[string]any)["id"].(string)

	rec = doJSON(t, stack, http.MethodPost, "/api/capabilities/codegen.scaffold",
		pair.AccessToken, map[string]string{"project_id": projectID, "component": "http server"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.NotEmpty(t, data["code"])

	// The metered invocation left a usage row behind.
	summaries, err := stack.usage.SummarizeByUser(t.Context(), "carol")
	require.NoError(t, err)
	found := false
	for _, s := range summaries {
		if s.Capability == "codegen.scaffold" {
			found = true
			assert.Equal(t, 1, s.Invocations)
		}
	}
	assert.True(t, found, "expected a codegen.scaffold usage summary")
}

func TestInvokeRejectsPayloadOwnerOverride(t *testing.T) {
	stack := newStack(t)
	pair := registerUser(t, stack, "alice", "free")

	rec := doJSON(t, stack, http.MethodPost, "/api/capabilities/project.create",
		pair.AccessToken, `{"name":"atlas","owner_username":"mallory"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decodeBody(t, rec)["code"])
}
