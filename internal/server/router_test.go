package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pfmt-portal/internal/config"
	"pfmt-portal/internal/handlers"
	"pfmt-portal/internal/identity"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store/memstore"
)

const testPassword = "Passw0rd!"

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	st     *memstore.Store

	users map[string]models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	stores := st.Stores()
	h := handlers.New(stores)
	resolver := identity.NewResolver(stores.Users)

	cfg := &config.Config{SessionSecret: "test-secret", ServerPort: "0"}
	r := NewRouter(cfg, h, resolver)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	ts := &testServer{
		t:      t,
		srv:    srv,
		client: &http.Client{Jar: jar},
		st:     st,
		users:  map[string]models.User{},
	}
	for _, role := range []roles.Role{roles.RolePMI, roles.RolePM, roles.RoleSPM, roles.RoleDirector, roles.RoleAdmin, roles.RoleAnalyst} {
		ts.seedUser(role)
	}
	return ts
}

func (ts *testServer) seedUser(role roles.Role) {
	ts.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(ts.t, err)
	u := models.User{
		Username:     string(role) + "@pfmt.test",
		DisplayName:  string(role),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(ts.t, ts.st.CreateUser(context.Background(), &u))
	ts.users[string(role)] = u
}

func (ts *testServer) do(method, path string, body any) (*http.Response, map[string]any) {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.client.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (ts *testServer) login(role roles.Role) {
	ts.t.Helper()
	resp, _ := ts.do(http.MethodPost, "/api/auth/login", gin.H{
		"username": string(role) + "@pfmt.test",
		"password": testPassword,
	})
	require.Equal(ts.t, http.StatusOK, resp.StatusCode)
}

func errCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestFullProjectFlow(t *testing.T) {
	ts := newTestServer(t)

	// pmi initiates
	ts.login(roles.RolePMI)
	resp, body := ts.do(http.MethodPost, "/api/projects", gin.H{
		"name":        "Courthouse Modernization",
		"description": "Security and access upgrades",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	project := body["project"].(map[string]any)
	projectID := uint(project["ID"].(float64))
	require.Equal(t, "initiated", project["workflow_status"])

	// director sees it pending and assigns the team
	ts.login(roles.RoleDirector)
	resp, body = ts.do(http.MethodGet, "/api/projects/pending-assignments", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["projects"], 1)

	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/assign", projectID), gin.H{
		"assigned_pm":  ts.users["pm"].ID,
		"assigned_spm": ts.users["spm"].ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// pm finalizes
	ts.login(roles.RolePM)
	resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/finalize", projectID), gin.H{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	project = body["project"].(map[string]any)
	require.Equal(t, "finalized", project["workflow_status"])
	require.Equal(t, "active", project["lifecycle_status"])

	// pm drafts and submits a version
	resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/versions", projectID), gin.H{
		"data_snapshot":  `{"budget":500000}`,
		"change_summary": "initial baseline",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	version := body["version"].(map[string]any)
	versionID := uint(version["ID"].(float64))

	resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/versions/%d/submit", versionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// pm cannot approve: route-level role gate rejects
	resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/versions/%d/approve", versionID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "FORBIDDEN", errCode(body))

	// spm approves
	ts.login(roles.RoleSPM)
	resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/versions/%d/approve", versionID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	version = body["version"].(map[string]any)
	require.Equal(t, "approved", version["status"])
	require.Equal(t, true, version["is_current"])

	// double approve is STATE_BLOCKED
	resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/versions/%d/approve", versionID), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "STATE_BLOCKED", errCode(body))
}

func TestAuthAndRoleGates(t *testing.T) {
	ts := newTestServer(t)

	t.Run("unauthenticated request rejected", func(t *testing.T) {
		resp, body := ts.do(http.MethodGet, "/api/projects/1", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, "AUTH_REQUIRED", errCode(body))
	})

	t.Run("analyst cannot initiate", func(t *testing.T) {
		ts.login(roles.RoleAnalyst)
		resp, body := ts.do(http.MethodPost, "/api/projects", gin.H{"name": "X", "description": "Y"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, "FORBIDDEN", errCode(body))
	})

	t.Run("assign out of phase is STATE_BLOCKED not FORBIDDEN", func(t *testing.T) {
		ts.login(roles.RolePMI)
		resp, body := ts.do(http.MethodPost, "/api/projects", gin.H{"name": "Depot", "description": "Fleet depot"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		projectID := uint(body["project"].(map[string]any)["ID"].(float64))

		ts.login(roles.RoleDirector)
		assignBody := gin.H{"assigned_pm": ts.users["pm"].ID, "assigned_spm": ts.users["spm"].ID}
		resp, _ = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/assign", projectID), assignBody)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = ts.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/assign", projectID), assignBody)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, "STATE_BLOCKED", errCode(body))
	})

	t.Run("register rejects unknown role token", func(t *testing.T) {
		resp, body := ts.do(http.MethodPost, "/api/auth/register", gin.H{
			"username": "newcomer@pfmt.test",
			"password": testPassword,
			"role":     "superuser",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, "VALIDATION_ERROR", errCode(body))
	})

	t.Run("register accepts legacy role alias", func(t *testing.T) {
		resp, body := ts.do(http.MethodPost, "/api/auth/register", gin.H{
			"username": "legacy@pfmt.test",
			"password": testPassword,
			"role":     "project_manager",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		require.Equal(t, "pm", body["user"].(map[string]any)["role"])
	})

	t.Run("analyst view is read-only", func(t *testing.T) {
		ts.login(roles.RolePMI)
		resp, body := ts.do(http.MethodPost, "/api/projects", gin.H{"name": "Archive", "description": "Records"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		projectID := uint(body["project"].(map[string]any)["ID"].(float64))

		ts.login(roles.RoleAnalyst)
		resp, body = ts.do(http.MethodGet, fmt.Sprintf("/api/projects/%d", projectID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, true, body["read_only"])
	})
}

func TestWizardOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	ts.login(roles.RolePMI)
	resp, body := ts.do(http.MethodPost, "/api/wizard/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID := body["session"].(map[string]any)["session_id"].(string)

	// step 2 before any project: STEP_BLOCKED echoing nextAllowed
	resp, body = ts.do(http.MethodPost, "/api/wizard/sessions/"+sessionID+"/steps", gin.H{
		"step": 2, "payload": gin.H{"pm": 1},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "STEP_BLOCKED", errCode(body))
	require.Equal(t, float64(1), body["error"].(map[string]any)["nextAllowed"])

	// unresolved session lookup carries the session-scoped code
	resp, body = ts.do(http.MethodGet, "/api/wizard/sessions/"+sessionID+"/project", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "SESSION_OR_PROJECT_NOT_FOUND", errCode(body))

	// step 1 creates the project, then binds it
	resp, body = ts.do(http.MethodPost, "/api/projects", gin.H{"name": "Library Annex", "description": "East wing"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	projectID := uint(body["project"].(map[string]any)["ID"].(float64))

	resp, _ = ts.do(http.MethodPost, "/api/wizard/sessions/"+sessionID+"/project", gin.H{"project_id": projectID})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(http.MethodGet, "/api/wizard/sessions/"+sessionID+"/project", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(projectID), body["project_id"])

	// derived progress: step 1 done, next is 2
	resp, body = ts.do(http.MethodGet, fmt.Sprintf("/api/projects/%d/wizard-progress", projectID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	progress := body["progress"].(map[string]any)
	require.Equal(t, []any{float64(1)}, progress["completedSteps"])
	require.Equal(t, float64(2), progress["nextAllowed"])
}
