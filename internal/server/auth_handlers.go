package server

import (
	"haven/internal/session"
	"haven/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ShowRegister renders the registration form.
func (s *Server) ShowRegister(c *fiber.Ctx) error {
	return s.render(c, "register", fiber.Map{
		"Title":  "Register",
		"Form":   &validation.RegistrationForm{},
		"Errors": validation.Errors{},
	})
}

// Register handles a registration submission. A valid submission creates
// the account and sends the browser to the login page to sign in.
func (s *Server) Register(c *fiber.Ctx) error {
	form := &validation.RegistrationForm{
		Username:        c.FormValue("username"),
		Email:           c.FormValue("email"),
		Password:        c.FormValue("password"),
		ConfirmPassword: c.FormValue("confirm_password"),
	}

	user, errs, err := s.accounts.Register(c.UserContext(), form)
	if err != nil {
		return s.handleError(c, err)
	}
	if errs.Any() {
		return c.Status(fiber.StatusUnprocessableEntity).Render("register", fiber.Map{
			"Title":   "Register",
			"Form":    form,
			"Errors":  errs,
			"Flashes": session.PopFlashes(c),
			"User":    nil,
		})
	}

	session.AddFlash(c, "success", "Your account has been created, "+user.Username+". You are now able to log in.")
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// ShowLogin renders the login form.
func (s *Server) ShowLogin(c *fiber.Ctx) error {
	return s.render(c, "login", fiber.Map{
		"Title":  "Log in",
		"Form":   &validation.LoginForm{},
		"Errors": validation.Errors{},
		"Next":   c.Query("next"),
	})
}

// Login handles a login submission. On success the browser is redirected to
// the page it originally asked for, if that destination is internal.
func (s *Server) Login(c *fiber.Ctx) error {
	form := &validation.LoginForm{
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		Remember: c.FormValue("remember") == "true",
	}

	if errs := form.Validate(); errs.Any() {
		return c.Status(fiber.StatusUnprocessableEntity).Render("login", fiber.Map{
			"Title":   "Log in",
			"Form":    form,
			"Errors":  errs,
			"Next":    c.Query("next"),
			"Flashes": session.PopFlashes(c),
			"User":    nil,
		})
	}

	user, err := s.accounts.Authenticate(c.UserContext(), form)
	if err != nil {
		session.AddFlash(c, "danger", "Invalid email or password.")
		return c.Redirect("/login", fiber.StatusSeeOther)
	}

	if err := s.sessions.Login(c, user.ID, form.Remember); err != nil {
		return s.handleError(c, err)
	}
	session.AddFlash(c, "success", "Welcome back, "+user.Username+"!")
	return c.Redirect(session.SafeRedirectPath(c.Query("next")), fiber.StatusSeeOther)
}

// Logout ends the current session.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.sessions.Logout(c); err != nil {
		return s.handleError(c, err)
	}
	session.AddFlash(c, "info", "You have been logged out.")
	return c.Redirect("/", fiber.StatusSeeOther)
}
