package server

import (
	"haven/internal/session"
	"haven/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// resetRequestFlash is shown whether or not the email belongs to an
// account, so the form cannot be used to probe for registered addresses.
const resetRequestFlash = "If that email belongs to an account, a reset link is on its way."

// ShowResetRequest renders the "forgot password" form.
func (s *Server) ShowResetRequest(c *fiber.Ctx) error {
	return s.render(c, "reset_request", fiber.Map{
		"Title":  "Reset password",
		"Form":   &validation.ResetRequestForm{},
		"Errors": validation.Errors{},
	})
}

// RequestReset handles a reset link request.
func (s *Server) RequestReset(c *fiber.Ctx) error {
	form := &validation.ResetRequestForm{
		Email: c.FormValue("email"),
	}

	if err := s.accounts.RequestReset(c.UserContext(), form); err != nil {
		return s.handleError(c, err)
	}

	session.AddFlash(c, "info", resetRequestFlash)
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// ShowResetForm verifies the emailed token and renders the new-password
// form. Bad tokens bounce back to the request page.
func (s *Server) ShowResetForm(c *fiber.Ctx) error {
	token := c.Params("token")

	if _, err := s.accounts.VerifyResetToken(c.UserContext(), token); err != nil {
		return s.resetTokenRejected(c, err)
	}

	return s.render(c, "reset_password", fiber.Map{
		"Title":  "Choose a new password",
		"Token":  token,
		"Form":   &validation.ResetPasswordForm{},
		"Errors": validation.Errors{},
	})
}

// CompleteReset applies the new password.
func (s *Server) CompleteReset(c *fiber.Ctx) error {
	token := c.Params("token")
	form := &validation.ResetPasswordForm{
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
	}

	errs, err := s.accounts.ResetPassword(c.UserContext(), token, form)
	if err != nil {
		return s.resetTokenRejected(c, err)
	}
	if errs.Any() {
		return c.Status(fiber.StatusUnprocessableEntity).Render("reset_password", fiber.Map{
			"Title":   "Choose a new password",
			"Token":   token,
			"Form":    form,
			"Errors":  errs,
			"Flashes": session.PopFlashes(c),
			"User":    nil,
		})
	}

	session.AddFlash(c, "success", "Your password has been reset. You can now log in.")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// resetTokenRejected sends expired/invalid token errors back to the
// request-a-link page with the error message as a flash.
func (s *Server) resetTokenRejected(c *fiber.Ctx, err error) error {
	session.AddFlash(c, "danger", userMessage(err))
	return c.Redirect("/reset_password", fiber.StatusSeeOther)
}
