package webserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-stack/faculty-advisor/src/advisor/agents"
	"github.com/campus-stack/faculty-advisor/src/advisor/ai"
	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/session"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

type fakeUsers struct{ nextID uint64 }

func (f *fakeUsers) Authenticate(email, password string) (*types.User, error) {
	if password != "secret" {
		return nil, types.E(types.KindUnauthorized, "invalid credentials")
	}
	f.nextID++
	return &types.User{ID: f.nextID, Email: email, Role: auth.DeriveRole(email)}, nil
}

type scriptedReasoner struct {
	calls [][]ai.Message
}

func (s *scriptedReasoner) Complete(_ context.Context, messages []ai.Message, _ ai.Options) (string, error) {
	s.calls = append(s.calls, messages)
	return `{"intent":"answer","response":"Here is what I found.","confidence":0.8,"tool_calls":[]}`, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *scriptedReasoner) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour, []string{"amrita.edu"})
	sessions := session.NewManager(session.NewMemoryStore(), time.Minute, 50)
	tools := agents.NewToolRegistry()
	require.NoError(t, agents.RegisterBuiltins(tools, sessions))

	reasoner := &scriptedReasoner{}
	mgr, err := agents.BuildManager(agents.Defaults("test-model", 0.2, 500), agents.Deps{
		Sessions:     sessions,
		Reasoner:     reasoner,
		Tools:        tools,
		StageTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	return New(Deps{
		Tokens:   tokens,
		Users:    &fakeUsers{},
		Sessions: sessions,
		Agents:   mgr,
	}), reasoner
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, email string) (token, sessionID, role string) {
	t.Helper()
	w := doJSON(t, r, "POST", "/v1/auth/login", "", gin.H{"email": email, "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		AccessToken string `json:"access_token"`
		SessionID   string `json:"session_id"`
		Role        string `json:"role"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotEmpty(t, out.AccessToken)
	require.Greater(t, out.ExpiresAt, time.Now().Unix())
	return out.AccessToken, out.SessionID, out.Role
}

func TestLoginRoles(t *testing.T) {
	r, _ := newTestServer(t)
	_, _, role := login(t, r, "student@amrita.edu")
	assert.Equal(t, auth.RoleStudent, role)
	_, _, role = login(t, r, "faculty.rao@amrita.edu")
	assert.Equal(t, auth.RoleFaculty, role)
	_, _, role = login(t, r, "admin.ops@amrita.edu")
	assert.Equal(t, auth.RoleAdmin, role)
}

func TestLoginRejectsForeignDomain(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, "POST", "/v1/auth/login", "", gin.H{"email": "student@gmail.com", "password": "secret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "domain")
}

func TestLoginRejectsBadPasswordGenerically(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, "POST", "/v1/auth/login", "", gin.H{"email": "student@amrita.edu", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestMeRequiresToken(t *testing.T) {
	r, _ := newTestServer(t)
	w := doJSON(t, r, "GET", "/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, _, _ := login(t, r, "student@amrita.edu")
	w = doJSON(t, r, "GET", "/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var identity auth.Identity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &identity))
	assert.Equal(t, "student@amrita.edu", identity.Email)
	assert.Equal(t, auth.RoleStudent, identity.Role)
}

func TestRefresh(t *testing.T) {
	r, _ := newTestServer(t)
	token, _, _ := login(t, r, "student@amrita.edu")

	w := doJSON(t, r, "POST", "/v1/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.AccessToken)

	w = doJSON(t, r, "GET", "/v1/auth/me", out.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdvisoryAskEndToEnd(t *testing.T) {
	r, reasoner := newTestServer(t)
	token, sessionID, _ := login(t, r, "student@amrita.edu")

	w := doJSON(t, r, "POST", "/v1/advisory/ask", token, gin.H{
		"session_id": sessionID,
		"query":      "Which electives can I take next semester?",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Content    string  `json:"content"`
		Confidence float64 `json:"confidence"`
		Error      *struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.Content)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)

	// Second call in the same session sees the first exchange.
	w = doJSON(t, r, "POST", "/v1/advisory/ask", token, gin.H{
		"session_id": sessionID,
		"query":      "And which of those are 3 credits?",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, reasoner.calls, 2)
	assert.Contains(t, reasoner.calls[1][0].Content, "Here is what I found.")

	// Session status reflects the stored history.
	w = doJSON(t, r, "GET", "/v1/session/status?session_id="+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Exists)
	assert.Equal(t, 4, st.Messages)
}

func TestMonitoringAgentFacultyOnly(t *testing.T) {
	r, _ := newTestServer(t)

	// Admin is not faculty: the gate requires the exact role set.
	token, sessionID, role := login(t, r, "admin.ops@amrita.edu")
	require.Equal(t, auth.RoleAdmin, role)
	w := doJSON(t, r, "POST", "/v1/agents/monitoring/ask", token, gin.H{
		"session_id": sessionID, "query": "attendance for cb123",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(types.KindUnauthorized))

	token, sessionID, _ = login(t, r, "faculty.rao@amrita.edu")
	w = doJSON(t, r, "POST", "/v1/agents/monitoring/ask", token, gin.H{
		"session_id": sessionID, "query": "attendance for cb123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownAgent(t *testing.T) {
	r, _ := newTestServer(t)
	token, sessionID, _ := login(t, r, "student@amrita.edu")
	w := doJSON(t, r, "POST", "/v1/agents/ghost/ask", token, gin.H{
		"session_id": sessionID, "query": "hi",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionClear(t *testing.T) {
	r, _ := newTestServer(t)
	token, sessionID, _ := login(t, r, "student@amrita.edu")

	w := doJSON(t, r, "POST", "/v1/advisory/ask", token, gin.H{
		"session_id": sessionID, "query": "remember this",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "DELETE", "/v1/session/clear?session_id="+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/v1/session/status?session_id="+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Exists)
	assert.Zero(t, st.Messages)
}

func TestLogoutClearsSession(t *testing.T) {
	r, _ := newTestServer(t)
	token, sessionID, _ := login(t, r, "student@amrita.edu")

	w := doJSON(t, r, "POST", "/v1/auth/logout", token, gin.H{"session_id": sessionID})
	require.Equal(t, http.StatusOK, w.Code)

	// Token stays valid until natural expiry; only the session state is gone.
	w = doJSON(t, r, "GET", "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, "GET", "/v1/session/status?session_id="+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Exists)
}

func TestExpiredTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	expiredTokens := auth.NewTokenService([]byte("test-secret"), -time.Minute, []string{"amrita.edu"})
	token, _, err := expiredTokens.Issue(auth.Identity{UserID: "u1", Email: "student@amrita.edu"})
	require.NoError(t, err)

	r, _ := newTestServer(t)
	w := doJSON(t, r, "GET", "/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(types.KindSessionExpired))
}

func TestSessionIsolationAcrossUsers(t *testing.T) {
	r, _ := newTestServer(t)
	tokenA, sessA, _ := login(t, r, "student@amrita.edu")
	tokenB, _, _ := login(t, r, "jane.doe@amrita.edu")

	w := doJSON(t, r, "POST", "/v1/advisory/ask", tokenA, gin.H{
		"session_id": sessA, "query": "only for A",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// B probing A's session id sees an empty space: the key includes the
	// authenticated user id, so the state spaces never collide.
	w = doJSON(t, r, "GET", fmt.Sprintf("/v1/session/status?session_id=%s", sessA), tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.Exists)
}

func TestToolFailureSurfacesDegradedResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour, []string{"amrita.edu"})
	sessions := session.NewManager(session.NewMemoryStore(), time.Minute, 50)
	tools := agents.NewToolRegistry()
	require.NoError(t, agents.RegisterBuiltins(tools, sessions))

	failing := &toolCallingReasoner{}
	mgr, err := agents.BuildManager(agents.Defaults("m", 0.2, 500), agents.Deps{
		Sessions: sessions, Reasoner: failing, Tools: tools, StageTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	r := New(Deps{Tokens: tokens, Users: &fakeUsers{}, Sessions: sessions, Agents: mgr})

	token, sessionID, _ := login(t, r, "student@amrita.edu")
	w := doJSON(t, r, "POST", "/v1/advisory/ask", token, gin.H{
		"session_id": sessionID, "query": "look up XX000",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Content string `json:"content"`
		Error   *struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.KindToolExecution), resp.Error.Kind)
	assert.NotEmpty(t, resp.Content)
}

type toolCallingReasoner struct{}

func (toolCallingReasoner) Complete(context.Context, []ai.Message, ai.Options) (string, error) {
	return `{"intent":"lookup","response":"Course details below.","confidence":0.8,` +
		`"tool_calls":[{"name":"course_lookup","args":{"course":"XX000"}}]}`, nil
}
