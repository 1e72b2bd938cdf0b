package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/invited/internal/config"
	"github.com/projecthub/invited/internal/datastore"
	"github.com/projecthub/invited/internal/mailer"
	"github.com/projecthub/invited/internal/repository"
	"github.com/projecthub/invited/pkg/model"
)

const testSecret = "local-jwt-secret"

type fakeResend struct {
	mx     sync.Mutex
	status int
	sent   []*mailer.Message
	srv    *httptest.Server
}

func newFakeResend(t *testing.T) *fakeResend {
	fr := &fakeResend{status: http.StatusOK}

	fr.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fr.mx.Lock()
		defer fr.mx.Unlock()

		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer re_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		msg := new(mailer.Message)
		if err := json.NewDecoder(r.Body).Decode(msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		fr.sent = append(fr.sent, msg)

		w.WriteHeader(fr.status)
		_, _ = w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))

	t.Cleanup(fr.srv.Close)

	return fr
}

func (fr *fakeResend) messages() []*mailer.Message {
	fr.mx.Lock()
	defer fr.mx.Unlock()

	return append([]*mailer.Message(nil), fr.sent...)
}

func (fr *fakeResend) setStatus(status int) {
	fr.mx.Lock()
	fr.status = status
	fr.mx.Unlock()
}

type logBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()

	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()

	return b.buf.String()
}

type TestApp struct {
	*App
	srv  *HttpServer
	logs *logBuffer
}

func NewTestApp(t *testing.T, emailEndpoint string) *TestApp {
	logs := new(logBuffer)
	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logs), &slog.HandlerOptions{Level: slog.LevelDebug})))

	membersFile := filepath.Join(t.TempDir(), "members.yml")

	require.NoError(t, repository.WriteMembers(membersFile, []*model.Membership{
		{ProjectID: "P1", UserID: "owner", Role: model.RoleOwner},
		{ProjectID: "P1", UserID: "admin", Role: model.RoleAdmin},
		{ProjectID: "P1", UserID: "viewer", Role: model.RoleViewer},
	}))

	cfg := config.NewAppConfig()
	cfg.Set("data.backend", config.BackendLocal)
	cfg.Set("data.jwt_secret", testSecret)
	cfg.Set("db", ":memory:")
	cfg.Set("members_file", membersFile)

	if emailEndpoint != "" {
		cfg.Set("email.api_key", "re_test")
		cfg.Set("email.endpoint", emailEndpoint)
	}

	require.NoError(t, cfg.Validate())

	app := &TestApp{App: NewApp(cfg), logs: logs}

	require.NoError(t, app.Init())
	require.NoError(t, app.members.Start())
	t.Cleanup(app.members.Stop)

	app.srv = NewHttp(app.App)

	return app
}

func (app *TestApp) Req(method, url, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, url, body)

	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	return app.srv.f.Test(req, 3000)
}

func (app *TestApp) PostJSON(url, token string, obj any) (*http.Response, error) {
	d, err := json.Marshal(obj)

	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(d))

	if err != nil {
		return nil, err
	}

	req.Header.Add(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	return app.srv.f.Test(req, 3000)
}

func userToken(t *testing.T, id string) string {
	tok, err := datastore.IssueToken(testSecret, &model.User{ID: id, Email: id + "@example.com"}, time.Hour)
	require.NoError(t, err)

	return tok
}

func invitation(project, email, role string) map[string]string {
	return map[string]string{"projectId": project, "email": email, "role": role}
}

func readError(t *testing.T, res *http.Response) string {
	t.Helper()

	defer res.Body.Close()

	assertCommonHeaders(t, res)

	var e model.ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&e))

	return e.Error
}

func assertCommonHeaders(t *testing.T, res *http.Response) {
	t.Helper()

	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", res.Header.Get("Access-Control-Allow-Headers"))
	assert.True(t, strings.HasPrefix(res.Header.Get("Content-Type"), "application/json"), res.Header.Get("Content-Type"))
}

func TestPreflight(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	for _, url := range []string{"/invite-user", "/functions/v1/invite-user", "/anything"} {
		res, err := app.Req("OPTIONS", url, "", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Empty(t, body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	for _, method := range []string{"GET", "PUT", "DELETE", "PATCH"} {
		res, err := app.Req(method, "/invite-user", userToken(t, "owner"), nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
		assert.Equal(t, "Method not allowed", readError(t, res))
	}
}

func TestBadInput(t *testing.T) {
	fr := newFakeResend(t)
	app := NewTestApp(t, fr.srv.URL)
	tok := userToken(t, "owner")

	for _, body := range []string{"", "not json", `["a"]`, `{"projectId": 5}`} {
		res, err := app.Req("POST", "/invite-user", tok, strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Invalid request body", readError(t, res))
	}

	for _, d := range []struct {
		body map[string]string
		msg  string
	}{
		{invitation("", "a@example.com", "member"), "Missing required fields: projectId, email, role"},
		{invitation("P1", "", "member"), "Missing required fields: projectId, email, role"},
		{invitation("P1", "a@example.com", ""), "Missing required fields: projectId, email, role"},
		{invitation("P1", "a@example.com", "guest"), "Invalid role"},
	} {
		res, err := app.PostJSON("/invite-user", tok, d.body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, d.msg, readError(t, res))
	}

	for body, msg := range map[string]string{
		`{"projectId":"P1","email":"a@example.com","role":5}`:        "Invalid role",
		`{"projectId":"P1","email":"a@example.com","role":["x"]}`:    "Invalid role",
		`{"projectId":"P1","email":"a@example.com","role":false}`:    "Missing required fields: projectId, email, role",
		`{"projectId":"P1","email":"a@example.com","role":null}`:     "Missing required fields: projectId, email, role",
		`{"projectId":"P1","email":"a@example.com","role":"owner "}`: "Invalid role",
	} {
		res, err := app.Req("POST", "/invite-user", tok, strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)
		assert.Equal(t, msg, readError(t, res), body)
	}

	// validation runs before authentication
	res, err := app.PostJSON("/invite-user", "", invitation("P1", "a@example.com", "guest"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Invalid role", readError(t, res))

	assert.Empty(t, fr.messages())
	assert.EqualValues(t, 0, app.dbm.InvitationQuery().Count())
}

func TestAuthentication(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)
	body := invitation("P1", "a@example.com", "member")

	res, err := app.PostJSON("/invite-user", "", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Missing or invalid authorization header", readError(t, res))

	d, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/invite-user", bytes.NewReader(d))
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	res, err = app.srv.f.Test(req, 3000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Missing or invalid authorization header", readError(t, res))

	res, err = app.PostJSON("/invite-user", "forged.token.value", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Invalid token", readError(t, res))

	expired, err := datastore.IssueToken(testSecret, &model.User{ID: "owner"}, -time.Minute)
	require.NoError(t, err)

	res, err = app.PostJSON("/invite-user", expired, body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "Invalid token", readError(t, res))
}

func TestAuthorization(t *testing.T) {
	fr := newFakeResend(t)
	app := NewTestApp(t, fr.srv.URL)
	body := invitation("P1", "a@example.com", "member")

	res, err := app.PostJSON("/invite-user", userToken(t, "stranger"), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Project not found or access denied", readError(t, res))

	res, err = app.PostJSON("/invite-user", userToken(t, "owner"), invitation("P2", "a@example.com", "member"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Project not found or access denied", readError(t, res))

	res, err = app.PostJSON("/invite-user", userToken(t, "viewer"), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Insufficient permissions", readError(t, res))

	assert.Empty(t, fr.messages())
}

func TestInvite(t *testing.T) {
	fr := newFakeResend(t)
	app := NewTestApp(t, fr.srv.URL)

	res, err := app.PostJSON("/invite-user", userToken(t, "owner"), invitation("P1", "alice@example.com", "member"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assertCommonHeaders(t, res)

	var r model.InviteResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&r))
	assert.True(t, r.Success)
	assert.Len(t, r.Token, 36)

	inv := app.dbm.InvitationQuery().Token(r.Token).One()
	require.NotNil(t, inv)
	assert.Equal(t, "P1", inv.ProjectID)
	assert.Equal(t, "alice@example.com", inv.Email)
	assert.Equal(t, model.RoleMember, inv.Role)
	assert.Equal(t, "owner", inv.InvitedBy)
	assert.Equal(t, model.StatusPending, inv.Status)

	msgs := fr.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"alice@example.com"}, msgs[0].To)
	assert.Equal(t, "no-reply@myprojectmanagementapp.com", msgs[0].From)
	assert.Equal(t, "Uitnodiging voor project", msgs[0].Subject)
	assert.Contains(t, msgs[0].HTML, "https://myprojectmanagementapp.com/accept-invite?token="+r.Token)

	// the same invitation again
	res, err = app.PostJSON("/invite-user", userToken(t, "admin"), invitation("P1", "alice@example.com", "viewer"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "Invitation already sent", readError(t, res))

	assert.Len(t, fr.messages(), 1)
	assert.EqualValues(t, 1, app.dbm.InvitationQuery().Count())

	// gateway path
	res, err = app.PostJSON("/functions/v1/invite-user", userToken(t, "admin"), invitation("P1", "bob@example.com", "admin"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 2, app.dbm.InvitationQuery().Pending().Project("P1").Count())
}

func TestInviteEmailFailure(t *testing.T) {
	fr := newFakeResend(t)
	fr.setStatus(http.StatusInternalServerError)

	app := NewTestApp(t, fr.srv.URL)

	res, err := app.PostJSON("/invite-user", userToken(t, "owner"), invitation("P1", "alice@example.com", "member"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var r model.InviteResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&r))
	assert.True(t, r.Success)

	assert.Len(t, fr.messages(), 1)
	assert.NotNil(t, app.dbm.InvitationQuery().Token(r.Token).One())
}

func TestInviteEmailNotConfigured(t *testing.T) {
	app := NewTestApp(t, "")

	res, err := app.PostJSON("/invite-user", userToken(t, "owner"), invitation("P1", "alice@example.com", "member"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Email service not configured", readError(t, res))

	assert.EqualValues(t, 0, app.dbm.InvitationQuery().Count())
}

func TestMembersReload(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	require.NoError(t, repository.WriteMembers(app.cfg.MembersFile(), []*model.Membership{
		{ProjectID: "P1", UserID: "viewer", Role: model.RoleAdmin},
	}))

	require.Eventually(t, func() bool {
		m := app.dbm.MembershipQuery().Project("P1").User("viewer").Get()
		return len(m) == 1 && m[0].Role == model.RoleAdmin
	}, 5*time.Second, 20*time.Millisecond)

	res, err := app.PostJSON("/invite-user", userToken(t, "viewer"), invitation("P1", "carol@example.com", "member"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestOperationalEndpoints(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	res, err := app.Req("GET", "/healthz", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	_, err = app.PostJSON("/invite-user", "", invitation("P1", "a@example.com", "member"))
	require.NoError(t, err)

	res, err = app.Req("GET", "/metrics", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `invited_invitations_total{result="unauthorized"}`)
	assert.Contains(t, string(body), "invited_http_requests_total")

	res, err = app.Req("GET", "/nowhere", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.NotEmpty(t, readError(t, res))
}

func TestPanicIsInternalError(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	app.srv.f.Get("/panic", func(_ *fiber.Ctx) error {
		panic("boom")
	})

	res, err := app.Req("GET", "/panic", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Internal server error", readError(t, res))

	logs := app.logs.String()
	assert.Contains(t, logs, "panic in GET /panic: boom")
	assert.Contains(t, logs, "500 GET /panic")
}

func TestAccessLogHasCaller(t *testing.T) {
	app := NewTestApp(t, newFakeResend(t).srv.URL)

	res, err := app.PostJSON("/invite-user", userToken(t, "viewer"), invitation("P1", "a@example.com", "member"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, err = app.PostJSON("/invite-user", userToken(t, "owner"), invitation("P1", "a@example.com", "member"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	logs := app.logs.String()
	assert.Regexp(t, `403 POST /invite-user.* user=viewer`, logs)
	assert.Regexp(t, `200 POST /invite-user.* user=owner`, logs)
}
