package server

import (
	"io"
	"strings"

	"haven/internal/models"
	"haven/internal/session"
	"haven/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ShowAccount renders the profile management page.
func (s *Server) ShowAccount(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)
	user, err := s.accounts.GetUser(c.UserContext(), userID)
	if err != nil {
		return s.handleError(c, err)
	}

	return s.render(c, "account", fiber.Map{
		"Title":  "Your account",
		"User":   user,
		"Form":   &validation.AccountUpdateForm{Username: user.Username, Email: user.Email},
		"Errors": validation.Errors{},
	})
}

// UpdateAccount applies profile changes, including an optional avatar
// upload. Violations re-render the form with the submitted values.
func (s *Server) UpdateAccount(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	form := &validation.AccountUpdateForm{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
	}

	avatarBytes, avatarType, err := readUpload(c, "profile_image")
	if err != nil {
		return s.handleError(c, err)
	}

	_, errs, err := s.accounts.UpdateProfile(c.UserContext(), userID, form, avatarBytes, avatarType)
	if err != nil {
		return s.handleError(c, err)
	}
	if errs.Any() {
		user, loadErr := s.accounts.GetUser(c.UserContext(), userID)
		if loadErr != nil {
			return s.handleError(c, loadErr)
		}
		return c.Status(fiber.StatusUnprocessableEntity).Render("account", fiber.Map{
			"Title":   "Your account",
			"User":    user,
			"Form":    form,
			"Errors":  errs,
			"Flashes": session.PopFlashes(c),
		})
	}

	session.AddFlash(c, "success", "Your account has been updated.")
	return c.Redirect("/account", fiber.StatusSeeOther)
}

// DeleteConversation erases the caller's entire chat history.
func (s *Server) DeleteConversation(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	if _, err := s.chat.DeleteConversation(c.UserContext(), userID); err != nil {
		return s.handleError(c, err)
	}
	session.AddFlash(c, "success", "Your chat history has been erased.")
	return c.Redirect("/chat", fiber.StatusSeeOther)
}

// DeleteAccount removes the caller's account and everything it owns, then
// ends the session.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	if err := s.accounts.DeleteAccount(c.UserContext(), userID); err != nil {
		return s.handleError(c, err)
	}
	if err := s.sessions.Logout(c); err != nil {
		return s.handleError(c, err)
	}
	session.AddFlash(c, "info", "Your account and all of its data have been deleted.")
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Avatar serves a stored profile image. Browsers advertising WebP support
// get the smaller sibling file.
func (s *Server) Avatar(c *fiber.Ctx) error {
	ref := c.Params("ref")
	if ref == models.DefaultProfileImage {
		return c.Redirect("/static/default-avatar.svg", fiber.StatusFound)
	}

	if strings.Contains(c.Get(fiber.HeaderAccept), "image/webp") {
		if path, ok := s.avatars.ResolveWebP(ref); ok {
			return c.SendFile(path)
		}
	}

	path, err := s.avatars.Resolve(ref)
	if err != nil {
		// Invalid and missing references both come back as a plain 404.
		return s.renderError(c, fiber.StatusNotFound, "Not found", "That image does not exist.")
	}
	return c.SendFile(path)
}

// readUpload reads an optional multipart file field. A missing field is not
// an error; it returns empty content.
func readUpload(c *fiber.Ctx, field string) ([]byte, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		// fasthttp reports both "no such field" and "not multipart" as errors
		return nil, "", nil
	}

	f, err := header.Open()
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return content, header.Header.Get(fiber.HeaderContentType), nil
}
