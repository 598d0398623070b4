package service

import (
	"context"

	"haven/internal/models"
	"haven/internal/repository"
	"haven/internal/validation"
)

// JournalService manages private journal entries.
type JournalService struct {
	journals repository.JournalRepository
}

// NewJournalService wires a JournalService from its dependencies.
func NewJournalService(journals repository.JournalRepository) *JournalService {
	return &JournalService{journals: journals}
}

// List returns the user's entries, newest first.
func (s *JournalService) List(ctx context.Context, userID uint) ([]models.Journal, error) {
	return s.journals.ListByUser(ctx, userID, 0)
}

// Add validates and stores a new entry. Violations come back in the Errors
// map and nothing is persisted.
func (s *JournalService) Add(ctx context.Context, userID uint, form *validation.JournalEntryForm) (*models.Journal, validation.Errors, error) {
	errs := form.Validate()
	if errs.Any() {
		return nil, errs, nil
	}

	entry := &models.Journal{
		UserID:  userID,
		Title:   form.Title,
		Mood:    form.Mood,
		Content: form.Content,
	}
	if err := s.journals.Create(ctx, entry); err != nil {
		return nil, nil, err
	}
	return entry, errs, nil
}
