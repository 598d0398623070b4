package server

import (
	"haven/internal/session"
	"haven/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ShowChat renders the companion conversation, oldest message first.
func (s *Server) ShowChat(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	messages, err := s.chat.History(c.UserContext(), userID)
	if err != nil {
		return s.handleError(c, err)
	}

	return s.render(c, "chat", fiber.Map{
		"Title":    "Chat",
		"Messages": messages,
	})
}

// SendChat stores the submitted message plus the companion's reply, then
// returns to the conversation.
func (s *Server) SendChat(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	if _, _, err := s.chat.Send(c.UserContext(), userID, c.FormValue("message")); err != nil {
		return s.handleError(c, err)
	}
	return c.Redirect("/chat", fiber.StatusSeeOther)
}

// ShowJournal renders the journal page: the entry form plus past entries,
// newest first.
func (s *Server) ShowJournal(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	entries, err := s.journals.List(c.UserContext(), userID)
	if err != nil {
		return s.handleError(c, err)
	}

	return s.render(c, "journal", fiber.Map{
		"Title":   "Journal",
		"Entries": entries,
		"Form":    &validation.JournalEntryForm{},
		"Errors":  validation.Errors{},
	})
}

// AddJournalEntry stores a new entry. Violations re-render the page with
// the submitted values so nothing typed is lost.
func (s *Server) AddJournalEntry(c *fiber.Ctx) error {
	userID, _ := s.sessions.CurrentUserID(c)

	form := &validation.JournalEntryForm{
		Title:   c.FormValue("title"),
		Mood:    c.FormValue("mood"),
		Content: c.FormValue("content"),
	}

	_, errs, err := s.journals.Add(c.UserContext(), userID, form)
	if err != nil {
		return s.handleError(c, err)
	}
	if errs.Any() {
		entries, listErr := s.journals.List(c.UserContext(), userID)
		if listErr != nil {
			return s.handleError(c, listErr)
		}
		return c.Status(fiber.StatusUnprocessableEntity).Render("journal", fiber.Map{
			"Title":   "Journal",
			"Entries": entries,
			"Form":    form,
			"Errors":  errs,
			"Flashes": session.PopFlashes(c),
			"User":    s.currentUser(c),
		})
	}

	session.AddFlash(c, "success", "Journal entry saved.")
	return c.Redirect("/journal", fiber.StatusSeeOther)
}
