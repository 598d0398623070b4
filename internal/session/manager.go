// Package session marks browser sessions as authenticated and exposes the
// current caller to request handlers.
package session

import (
	"context"
	"net/url"
	"strings"
	"time"

	"haven/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CookieName is the browser cookie carrying the opaque session ID.
const CookieName = "haven_session"

const localsUserKey = "userID"

// Manager establishes, resolves and tears down authenticated sessions.
type Manager struct {
	store       Store
	sessionTTL  time.Duration
	rememberTTL time.Duration
}

// NewManager returns a session manager using the given store. sessionTTL
// bounds plain browser sessions, rememberTTL bounds remember-me sessions.
func NewManager(store Store, sessionTTL, rememberTTL time.Duration) *Manager {
	return &Manager{
		store:       store,
		sessionTTL:  sessionTTL,
		rememberTTL: rememberTTL,
	}
}

// Login establishes an authenticated session for the calling browser. With
// remember the cookie persists across browser restarts up to rememberTTL,
// otherwise it is a session cookie backed by a sessionTTL store entry.
func (m *Manager) Login(c *fiber.Ctx, userID uint, remember bool) error {
	sessionID := uuid.NewString()

	ttl := m.sessionTTL
	kind := "session"
	if remember {
		ttl = m.rememberTTL
		kind = "remember"
	}

	if err := m.store.Set(c.Context(), sessionID, userID, ttl); err != nil {
		return err
	}
	middleware.SessionsStarted.WithLabelValues(kind).Inc()

	cookie := &fiber.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   c.Protocol() == "https",
	}
	if remember {
		cookie.Expires = time.Now().Add(ttl)
	}
	c.Cookie(cookie)

	c.Locals(localsUserKey, userID)
	return nil
}

// Logout invalidates the current session, if any.
func (m *Manager) Logout(c *fiber.Ctx) error {
	sessionID := c.Cookies(CookieName)
	if sessionID != "" {
		if err := m.store.Delete(c.Context(), sessionID); err != nil {
			return err
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(localsUserKey, nil)
	return nil
}

// CurrentUserID resolves the caller of the request. The second return is
// false for anonymous callers.
func (m *Manager) CurrentUserID(c *fiber.Ctx) (uint, bool) {
	if uid, ok := c.Locals(localsUserKey).(uint); ok {
		return uid, true
	}

	sessionID := c.Cookies(CookieName)
	if sessionID == "" {
		return 0, false
	}

	userID, found, err := m.store.Get(c.Context(), sessionID)
	if err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "session lookup failed", "error", err.Error())
		return 0, false
	}
	if !found {
		return 0, false
	}

	c.Locals(localsUserKey, userID)
	return userID, true
}

// Resolve returns middleware that resolves the caller early so user_id is
// available to logging and downstream handlers.
func (m *Manager) Resolve() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, ok := m.CurrentUserID(c); ok {
			ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
			c.SetUserContext(ctx)
		}
		return c.Next()
	}
}

// RequireLogin returns middleware redirecting anonymous callers to the
// login page, carrying the original destination in `next`.
func (m *Manager) RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := m.CurrentUserID(c); ok {
			return c.Next()
		}
		AddFlash(c, "info", "Please log in to access this page.")
		return c.Redirect("/login?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusSeeOther)
	}
}

// RedirectIfAuthenticated returns middleware sending logged-in users back
// to the home page; anon-only pages (login, register, reset) use it.
func (m *Manager) RedirectIfAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := m.CurrentUserID(c); ok {
			return c.Redirect("/", fiber.StatusSeeOther)
		}
		return c.Next()
	}
}

// SafeRedirectPath validates a post-login destination. Only internal paths
// are honored so the `next` parameter cannot be used as an open redirect;
// everything else falls back to "/".
func SafeRedirectPath(next string) string {
	if next == "" {
		return "/"
	}
	if !strings.HasPrefix(next, "/") {
		return "/"
	}
	// Protocol-relative URLs ("//evil.com") and backslash tricks escape the
	// origin in browsers.
	if strings.HasPrefix(next, "//") || strings.Contains(next, "\\") || strings.Contains(next, "://") {
		return "/"
	}
	return next
}
