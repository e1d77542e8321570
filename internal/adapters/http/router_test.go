package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/meetsync/internal/app/orch"
	"github.com/dkeye/meetsync/internal/config"
	"github.com/dkeye/meetsync/internal/core"
	"github.com/dkeye/meetsync/internal/domain"
)

type fakeIDP struct {
	refreshErr error
}

func (fakeIDP) AuthURL(state string) string { return "https://idp.example/auth?state=" + state }

func (fakeIDP) ExchangeCode(_ context.Context, code string) (domain.Identity, domain.Credential, error) {
	if code != "good" {
		return domain.Identity{}, domain.Credential{}, fmt.Errorf("%w: bad code", domain.ErrAuthenticationFailure)
	}
	return domain.Identity{ID: "u-1", Email: "alice@example.com", Name: "Alice"},
		domain.Credential{AccessToken: "google-access", RefreshToken: "google-refresh"}, nil
}

func (f fakeIDP) Refresh(_ context.Context, cred domain.Credential) (domain.Credential, error) {
	if f.refreshErr != nil {
		return domain.Credential{}, f.refreshErr
	}
	cred.AccessToken = "at2"
	return cred, nil
}

type fakeProvisioner struct{ err error }

func (p fakeProvisioner) CreateMeeting(_ context.Context, _ domain.Credential, req domain.MeetingRequest) (domain.Meeting, error) {
	if p.err != nil {
		return domain.Meeting{}, p.err
	}
	return domain.Meeting{ID: "abc-defg-hij", URL: "https://meet.example/abc", Title: req.Title}, nil
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	orch   *orch.Orchestrator
}

func newEnv(t *testing.T, anonymous bool, prov core.MeetingProvisioner) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:           "test",
		Secret:         "0123456789abcdef0123456789abcdef",
		StaticPath:     t.TempDir(),
		PingPeriod:     time.Minute,
		SendBuffer:     8,
		FrontendURL:    "http://front.example",
		AllowAnonymous: anonymous,
		AdminToken:     "admin",
		Metrics:        config.MetricsConfig{Enabled: true},
	}
	o := orch.New(core.NewRegistry(), nil, prov)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, fakeIDP{}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar:           jar,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &testEnv{srv: srv, client: client, orch: o}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/auth/google/login", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp = e.do(t, http.MethodGet, "/auth/google/callback?code=good&state="+state, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "http://front.example/#/dashboard", resp.Header.Get("Location"))
}

func (e *testEnv) dial(t *testing.T, kind string) (*websocket.Conn, error) {
	t.Helper()
	d := websocket.Dialer{Jar: e.client.Jar, HandshakeTimeout: 2 * time.Second}
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/ws/signal?deviceKind=" + kind
	ws, _, err := d.Dial(u, nil)
	if ws != nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return ws, err
}

func readFrame(t *testing.T, ws *websocket.Conn) core.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m core.Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t, false, nil)

	resp := e.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	resp = e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, false, nil)

	resp := e.do(t, http.MethodGet, "/auth/user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	e.signIn(t)

	resp = e.do(t, http.MethodGet, "/auth/user", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user domain.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, domain.UserID("u-1"), user.ID)
	require.Len(t, e.orch.Store.List(), 1)

	resp = e.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snap := e.orch.Store.List()[0]
	assert.Equal(t, "at2", snap.Credential.AccessToken)

	resp = e.do(t, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, e.orch.Store.List())

	resp = e.do(t, http.MethodGet, "/auth/user", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// cookiePayload decodes the signed session cookie down to its serialized values.
func (e *testEnv) cookiePayload(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(e.srv.URL)
	require.NoError(t, err)
	for _, ck := range e.client.Jar.Cookies(u) {
		if ck.Name != sessionCookie {
			continue
		}
		outer, err := base64.URLEncoding.DecodeString(ck.Value)
		require.NoError(t, err)
		parts := strings.SplitN(string(outer), "|", 3)
		require.Len(t, parts, 3)
		inner, err := base64.URLEncoding.DecodeString(parts[1])
		require.NoError(t, err)
		return string(inner)
	}
	t.Fatal("no session cookie")
	return ""
}

func TestSessionCookieCarriesNoTokens(t *testing.T) {
	e := newEnv(t, false, fakeProvisioner{})
	e.signIn(t)

	payload := e.cookiePayload(t)
	assert.Contains(t, payload, "u-1")
	assert.NotContains(t, payload, "google-access")
	assert.NotContains(t, payload, "google-refresh")

	snap := e.orch.Store.List()[0]
	assert.Equal(t, "google-refresh", snap.Credential.RefreshToken)

	resp := e.do(t, http.MethodPost, "/calendar/create-meeting", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "credential comes from the server session")
	resp = e.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, e.cookiePayload(t), "at2")
}

func TestCreateMeetingAfterSessionTornDown(t *testing.T) {
	e := newEnv(t, false, fakeProvisioner{})
	e.signIn(t)
	require.True(t, e.orch.Teardown(e.orch.Store.List()[0].ID))

	resp := e.do(t, http.MethodPost, "/calendar/create-meeting", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = e.do(t, http.MethodPost, "/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCallbackRejectsForeignState(t *testing.T) {
	e := newEnv(t, false, nil)
	e.do(t, http.MethodGet, "/auth/google/login", nil)

	resp := e.do(t, http.MethodGet, "/auth/google/callback?code=good&state=forged", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "http://front.example/#/login?error="))
	assert.Empty(t, e.orch.Store.List())
}

func TestSignalRequiresSession(t *testing.T) {
	e := newEnv(t, false, nil)

	ws, err := e.dial(t, "glasses")
	require.NoError(t, err)
	m := readFrame(t, ws)
	require.Equal(t, core.EventError, m.Type)
	var p core.ErrorPayload
	require.NoError(t, json.Unmarshal(m.Payload, &p))
	assert.Equal(t, domain.KindAuthenticationFailure, p.Kind)
}

func TestSignalAfterSignIn(t *testing.T) {
	e := newEnv(t, false, nil)
	e.signIn(t)

	ws, err := e.dial(t, "glasses")
	require.NoError(t, err)
	assert.Equal(t, core.EventMeetingState, readFrame(t, ws).Type)

	resp := e.do(t, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	assert.Zero(t, e.orch.Registry.Count(), "logout disconnects devices")
}

func TestAnonymousSessions(t *testing.T) {
	e := newEnv(t, true, nil)
	e.do(t, http.MethodGet, "/health", nil)

	ws, err := e.dial(t, "ring")
	require.NoError(t, err)
	assert.Equal(t, core.EventMeetingState, readFrame(t, ws).Type)
}

func TestCreateMeeting(t *testing.T) {
	tests := []struct {
		name   string
		prov   core.MeetingProvisioner
		status int
	}{
		{"ok", fakeProvisioner{}, http.StatusOK},
		{"expired", fakeProvisioner{err: fmt.Errorf("x: %w", domain.ErrAuthExpired)}, http.StatusUnauthorized},
		{"forbidden", fakeProvisioner{err: fmt.Errorf("x: %w", domain.ErrPermissionDenied)}, http.StatusForbidden},
		{"failed", fakeProvisioner{err: fmt.Errorf("x: %w", domain.ErrProvisioningFailed)}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, false, tt.prov)
			e.signIn(t)

			resp := e.do(t, http.MethodPost, "/calendar/create-meeting", strings.NewReader(`{"title":"Retro"}`), "Content-Type", "application/json")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var m meetingDetails
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
			assert.Equal(t, domain.MeetingID("abc-defg-hij"), m.MeetingID)
			assert.Equal(t, "Retro", m.Title)
		})
	}
}

func TestCreateMeetingRequiresSignIn(t *testing.T) {
	e := newEnv(t, false, fakeProvisioner{})
	resp := e.do(t, http.MethodPost, "/calendar/create-meeting", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminSessions(t *testing.T) {
	e := newEnv(t, false, nil)
	e.orch.Store.GetOrCreate("s1", domain.Identity{ID: "u"}, domain.Credential{})

	resp := e.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	auth := []string{"Authorization", "Bearer admin"}
	resp = e.do(t, http.MethodGet, "/api/sessions", nil, auth...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []domain.Snapshot `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 1)

	resp = e.do(t, http.MethodGet, "/api/sessions/s1", nil, auth...)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodDelete, "/api/sessions/s1", nil, auth...)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodDelete, "/api/sessions/s1", nil, auth...)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/api/sessions/s1", nil, auth...)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
