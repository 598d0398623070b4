package server

import (
	"errors"
	"net/url"

	"haven/internal/middleware"
	"haven/internal/models"
	"haven/internal/session"

	"github.com/gofiber/fiber/v2"
)

// render draws a page with the layout, current user and pending flashes.
// Handlers may pre-set "User" to avoid a second lookup.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	data["Flashes"] = session.PopFlashes(c)

	if _, ok := data["User"]; !ok {
		data["User"] = s.currentUser(c)
	}

	return c.Render(name, data)
}

// currentUser loads the logged-in user's record, or nil for anonymous
// callers. Load failures render the page as anonymous rather than erroring.
func (s *Server) currentUser(c *fiber.Ctx) *models.User {
	userID, ok := s.sessions.CurrentUserID(c)
	if !ok {
		return nil
	}
	user, err := s.accounts.GetUser(c.UserContext(), userID)
	if err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to load current user",
			"user_id", userID, "error", err.Error())
		return nil
	}
	return user
}

// renderError draws the standalone error page.
func (s *Server) renderError(c *fiber.Ctx, status int, title, message string) error {
	return c.Status(status).Render("error", fiber.Map{
		"Title":   title,
		"Message": message,
		"User":    s.currentUser(c),
		"Flashes": session.PopFlashes(c),
	})
}

// handleError maps an application error to a rendered response. Unknown
// errors become a 500 page with no internal detail leaked.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NOT_FOUND":
			return s.renderError(c, fiber.StatusNotFound, "Not found", "The page or record you asked for does not exist.")
		case "UNAUTHORIZED":
			session.AddFlash(c, "danger", appErr.Message)
			return c.Redirect("/login", fiber.StatusSeeOther)
		case "VALIDATION_ERROR":
			session.AddFlash(c, "danger", appErr.Message)
			return c.Redirect(safeReferer(c), fiber.StatusSeeOther)
		}
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
	return s.renderError(c, fiber.StatusInternalServerError, "Something went wrong",
		"An unexpected error occurred. Please try again in a moment.")
}

// errorHandler is the Fiber-level fallback for errors escaping handlers.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		if fiberErr.Code == fiber.StatusNotFound {
			return s.renderError(c, fiber.StatusNotFound, "Not found", "The page you asked for does not exist.")
		}
		return s.renderError(c, fiberErr.Code, "Request failed", fiberErr.Message)
	}
	return s.handleError(c, err)
}

// userMessage extracts the user-facing message from an application error.
func userMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// safeReferer returns the Referer path if it is an internal path, else "/".
func safeReferer(c *fiber.Ctx) string {
	if ref := c.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Path != "" {
			return session.SafeRedirectPath(u.Path)
		}
	}
	return "/"
}
