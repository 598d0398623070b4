package server

import "github.com/gofiber/fiber/v2"

// Home renders the landing page.
func (s *Server) Home(c *fiber.Ctx) error {
	return s.render(c, "home", fiber.Map{})
}

// About renders the about page.
func (s *Server) About(c *fiber.Ctx) error {
	return s.render(c, "about", fiber.Map{
		"Title": "About",
	})
}

// SOS renders the crisis resources page. It is reachable without a login so
// help is never behind a wall.
func (s *Server) SOS(c *fiber.Ctx) error {
	return s.render(c, "sos", fiber.Map{
		"Title": "SOS",
	})
}
