package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"haven/internal/config"
	"haven/internal/database"
	"haven/internal/models"
	"haven/internal/service"
	"haven/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// capturingMailer records reset emails instead of sending them.
type capturingMailer struct {
	mu   sync.Mutex
	urls []string
}

func (m *capturingMailer) SendPasswordReset(_ context.Context, _, _, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, resetURL)
	return nil
}

func (m *capturingMailer) lastURL(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.urls, "no reset email captured")
	return m.urls[len(m.urls)-1]
}

type testEnv struct {
	srv    *Server
	app    *fiber.App
	db     *gorm.DB
	mailer *capturingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Port:                  "0",
		Env:                   "test",
		BaseURL:               "http://localhost:8640",
		SecretKey:             "handler-test-secret",
		ResetTokenTTLMinutes:  30,
		SessionTTLHours:       1,
		RememberTTLDays:       30,
		AvatarDir:             t.TempDir(),
		AvatarMaxUploadSizeMB: 5,
	}

	mailer := &capturingMailer{}
	srv, err := NewServerWithDeps(cfg, db, nil, mailer, service.NewScriptedResponder())
	require.NoError(t, err)

	return &testEnv{srv: srv, app: srv.newApp(), db: db, mailer: mailer}
}

func (e *testEnv) get(t *testing.T, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CookieName && ck.Value != "" {
			return ck
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// register creates an account and logs it in, returning the session cookie.
// Registration itself does not start a session.
func (e *testEnv) register(t *testing.T, username, email, password string) *http.Cookie {
	t.Helper()
	resp := e.postForm(t, "/register", url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {password},
		"confirm_password": {password},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
	return e.login(t, email, password)
}

func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	resp := e.postForm(t, "/login", url.Values{
		"email":    {email},
		"password": {password},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	return sessionCookie(t, resp)
}

func TestRegisterFlow(t *testing.T) {
	e := newTestEnv(t)

	resp := e.postForm(t, "/register", url.Values{
		"username":         {"ada"},
		"email":            {"ada@example.com"},
		"password":         {"Sup3rSecret"},
		"confirm_password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// Registration lands on the login page without starting a session.
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	for _, ck := range resp.Cookies() {
		assert.NotEqual(t, session.CookieName, ck.Name)
	}

	// The plaintext password never reaches the database.
	var user models.User
	require.NoError(t, e.db.Where("username = ?", "ada").First(&user).Error)
	assert.NotEqual(t, "Sup3rSecret", user.Password)
	assert.Equal(t, models.DefaultProfileImage, user.ProfileImage)

	// A duplicate registration re-renders the form with the violation.
	resp = e.postForm(t, "/register", url.Values{
		"username":         {"ada"},
		"email":            {"second@example.com"},
		"password":         {"Sup3rSecret"},
		"confirm_password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "That username is already taken.")
}

func TestRegisterValidationRerendersForm(t *testing.T) {
	e := newTestEnv(t)

	resp := e.postForm(t, "/register", url.Values{
		"username":         {"ada"},
		"email":            {"ada@example.com"},
		"password":         {"weak"},
		"confirm_password": {"weak"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// Submitted username and email are retained in the form.
	page := body(t, resp)
	assert.Contains(t, page, `value="ada"`)
	assert.Contains(t, page, `value="ada@example.com"`)

	var count int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoginFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	// Wrong password bounces back to the login page.
	resp := e.postForm(t, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"WrongPass1"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	// Correct credentials establish a session.
	resp = e.postForm(t, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	cookie := sessionCookie(t, resp)

	account := e.get(t, "/account", cookie)
	require.Equal(t, http.StatusOK, account.StatusCode)
	assert.Contains(t, body(t, account), "ada")
}

func TestLoginHonorsNextParameter(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/login?next=%2Fjournal", url.Values{
		"email":    {"ada@example.com"},
		"password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/journal", resp.Header.Get("Location"))

	// An external destination is not honored.
	resp = e.postForm(t, "/login?next=https%3A%2F%2Fevil.example", url.Values{
		"email":    {"ada@example.com"},
		"password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestProtectedPagesRequireLogin(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/account", "/chat", "/journal"} {
		resp := e.get(t, path)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Location"), "/login?next=", path)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/logout", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	after := e.get(t, "/account", cookie)
	require.Equal(t, http.StatusSeeOther, after.StatusCode)
	assert.Contains(t, after.Header.Get("Location"), "/login")
}

func TestAccountUpdate(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/account", url.Values{
		"username": {"ada_lovelace"},
		"email":    {"ada@example.com"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var user models.User
	require.NoError(t, e.db.Where("email = ?", "ada@example.com").First(&user).Error)
	assert.Equal(t, "ada_lovelace", user.Username)
}

func TestAccountUpdateRejectsTakenUsername(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "grace", "grace@example.com", "Sup3rSecret")
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/account", url.Values{
		"username": {"grace"},
		"email":    {"ada@example.com"},
	}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "That username is already taken.")
}

func TestPasswordResetFlow(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	// Request a link; the flash is identical for unknown addresses.
	resp := e.postForm(t, "/reset_password", url.Values{"email": {"ada@example.com"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	unknown := e.postForm(t, "/reset_password", url.Values{"email": {"ghost@example.com"}})
	require.Equal(t, http.StatusSeeOther, unknown.StatusCode)
	assert.Equal(t, resp.Header.Get("Location"), unknown.Header.Get("Location"))

	resetURL := e.mailer.lastURL(t)
	parsed, err := url.Parse(resetURL)
	require.NoError(t, err)

	// The emailed link renders the new-password form.
	form := e.get(t, parsed.Path)
	require.Equal(t, http.StatusOK, form.StatusCode)

	// Submitting the current password again is rejected.
	resp = e.postForm(t, parsed.Path, url.Values{
		"password":         {"Sup3rSecret"},
		"confirm_password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "must be different")

	// A genuinely new password completes the flow.
	resp = e.postForm(t, parsed.Path, url.Values{
		"password":         {"Bran3dNewPass"},
		"confirm_password": {"Bran3dNewPass"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	login := e.postForm(t, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"Bran3dNewPass"},
	})
	require.Equal(t, http.StatusSeeOther, login.StatusCode)
	assert.Equal(t, "/", login.Header.Get("Location"))
}

func TestPasswordResetRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)

	resp := e.get(t, "/reset_password/not-a-real-token")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/reset_password", resp.Header.Get("Location"))
}

func TestChatFlow(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/chat", url.Values{"message": {"I feel anxious today"}}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	page := body(t, e.get(t, "/chat", cookie))
	assert.Contains(t, page, "I feel anxious today")
	assert.Contains(t, page, "Companion")

	// Both sides of the exchange are persisted.
	var count int64
	require.NoError(t, e.db.Model(&models.ChatMessage{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Erasing the conversation clears it completely.
	resp = e.postForm(t, "/delete_conversation", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.NoError(t, e.db.Model(&models.ChatMessage{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestJournalFlow(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")

	resp := e.postForm(t, "/journal", url.Values{
		"title":   {"a small win"},
		"mood":    {"hopeful"},
		"content": {"made it outside for a walk"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	page := body(t, e.get(t, "/journal", cookie))
	assert.Contains(t, page, "a small win")
	assert.Contains(t, page, "hopeful")

	// A missing title re-renders the form with the entry content intact.
	resp = e.postForm(t, "/journal", url.Values{
		"title":   {""},
		"content": {"words I typed and do not want to lose"},
	}, cookie)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body(t, resp), "words I typed and do not want to lose")
}

func TestDeleteAccountCascadesOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "ada", "ada@example.com", "Sup3rSecret")
	bystander := e.register(t, "grace", "grace@example.com", "Sup3rSecret")

	_ = e.postForm(t, "/chat", url.Values{"message": {"hello"}}, cookie)
	_ = e.postForm(t, "/journal", url.Values{"title": {"t"}, "content": {"c"}}, cookie)
	_ = e.postForm(t, "/chat", url.Values{"message": {"other user"}}, bystander)

	resp := e.postForm(t, "/delete_account", url.Values{}, cookie)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	var users, messages, journals int64
	require.NoError(t, e.db.Model(&models.User{}).Where("username = ?", "ada").Count(&users).Error)
	require.NoError(t, e.db.Model(&models.ChatMessage{}).Count(&messages).Error)
	require.NoError(t, e.db.Model(&models.Journal{}).Count(&journals).Error)
	assert.Zero(t, users)
	assert.Equal(t, int64(2), messages, "bystander's exchange survives")
	assert.Zero(t, journals)

	// The old session no longer works.
	after := e.get(t, "/account", cookie)
	require.Equal(t, http.StatusSeeOther, after.StatusCode)
	assert.Contains(t, after.Header.Get("Location"), "/login")

	// And neither do the deleted credentials.
	login := e.postForm(t, "/login", url.Values{
		"email":    {"ada@example.com"},
		"password": {"Sup3rSecret"},
	})
	require.Equal(t, http.StatusSeeOther, login.StatusCode)
	assert.Equal(t, "/login", login.Header.Get("Location"))
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	live := e.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready := e.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestAvatarDefaultRedirects(t *testing.T) {
	e := newTestEnv(t)

	resp := e.get(t, "/media/avatars/"+models.DefaultProfileImage)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/static/default-avatar.svg", resp.Header.Get("Location"))
}

func TestAvatarRejectsTraversal(t *testing.T) {
	e := newTestEnv(t)

	resp := e.get(t, "/media/avatars/..%2Fsecrets.jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPublicPagesRender(t *testing.T) {
	e := newTestEnv(t)

	for path, want := range map[string]string{
		"/":      "A quiet place",
		"/about": "About Haven",
		"/sos":   "988",
	} {
		resp := e.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body(t, resp), want, path)
	}
}
