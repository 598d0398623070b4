package session

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisManager(t *testing.T) *Manager {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewManager(NewRedisStore(rdb), 24*time.Hour, 30*24*time.Hour)
}

func sessionCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c.Value
		}
	}
	return ""
}

func TestManager_LoginThenCurrentUser(t *testing.T) {
	m := newRedisManager(t)
	app := fiber.New()

	app.Post("/login", func(c *fiber.Ctx) error {
		return m.Login(c, 42, false)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		uid, ok := m.CurrentUserID(c)
		if !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendString(strconv.FormatUint(uint64(uid), 10))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	sid := sessionCookie(t, resp)
	require.NotEmpty(t, sid)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	resp2, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestManager_RememberSetsPersistentCookie(t *testing.T) {
	m := newRedisManager(t)
	app := fiber.New()

	app.Post("/login", func(c *fiber.Ctx) error {
		return m.Login(c, 1, true)
	})
	app.Post("/login-plain", func(c *fiber.Ctx) error {
		return m.Login(c, 1, false)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			assert.False(t, c.Expires.IsZero(), "remember-me cookie should carry an expiry")
		}
	}

	resp2, err := app.Test(httptest.NewRequest(http.MethodPost, "/login-plain", nil))
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	for _, c := range resp2.Cookies() {
		if c.Name == CookieName {
			assert.True(t, c.Expires.IsZero(), "plain session cookie should not carry an expiry")
		}
	}
}

func TestManager_Logout(t *testing.T) {
	m := newRedisManager(t)
	app := fiber.New()

	app.Post("/login", func(c *fiber.Ctx) error {
		return m.Login(c, 42, false)
	})
	app.Get("/logout", func(c *fiber.Ctx) error {
		return m.Logout(c)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		if _, ok := m.CurrentUserID(c); !ok {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	sid := sessionCookie(t, resp)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	respLogout, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = respLogout.Body.Close() }()

	// The stored session is gone, so the old cookie no longer authenticates.
	req2 := httptest.NewRequest(http.MethodGet, "/me", nil)
	req2.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	resp2, err := app.Test(req2)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestManager_RequireLoginRedirectsWithNext(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, time.Hour)
	app := fiber.New()

	app.Get("/journal", m.RequireLogin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/journal", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fjournal", resp.Header.Get("Location"))
}

func TestManager_RedirectIfAuthenticated(t *testing.T) {
	m := NewManager(NewMemoryStore(), time.Hour, time.Hour)
	app := fiber.New()

	app.Post("/login", func(c *fiber.Ctx) error {
		return m.Login(c, 5, false)
	})
	app.Get("/register", m.RedirectIfAuthenticated(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	sid := sessionCookie(t, resp)

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})
	resp2, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusSeeOther, resp2.StatusCode)
	assert.Equal(t, "/", resp2.Header.Get("Location"))
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		next     string
		expected string
	}{
		{"", "/"},
		{"/account", "/account"},
		{"/journal?page=2", "/journal?page=2"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"/ok/../still-internal", "/ok/../still-internal"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.expected, SafeRedirectPath(tt.next))
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()

	require.NoError(t, s.Set(ctx, "sid", 9, 10*time.Millisecond))

	uid, found, err := s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(9), uid)

	time.Sleep(20 * time.Millisecond)
	_, found, err = s.Get(ctx, "sid")
	require.NoError(t, err)
	assert.False(t, found)
}
