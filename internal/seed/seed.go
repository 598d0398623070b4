// Package seed populates the database with realistic development data.
package seed

import (
	"context"
	"fmt"
	"strings"

	"haven/internal/auth"
	"haven/internal/models"
	"haven/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// SharedPassword is the password every seeded account logs in with.
const SharedPassword = "password123"

var moods = []string{"calm", "anxious", "hopeful", "tired", "grateful", "restless", "content"}

var openers = []string{
	"I've been feeling anxious about work lately.",
	"Today was actually a pretty good day.",
	"I can't sleep properly this week.",
	"I feel a bit lonely at the moment.",
	"Thanks for listening yesterday, it helped.",
}

// Seeder creates fake accounts with conversations and journal entries.
type Seeder struct {
	db        *gorm.DB
	responder service.Responder
}

// NewSeeder returns a seeder writing through the given database handle.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, responder: service.NewScriptedResponder()}
}

// ClearAll removes every record, children before owners.
func (s *Seeder) ClearAll() error {
	for _, model := range []any{&models.ChatMessage{}, &models.Journal{}, &models.User{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", model, err)
		}
	}
	return nil
}

// SeedUsers creates n accounts sharing SharedPassword.
func (s *Seeder) SeedUsers(n int) ([]models.User, error) {
	hashed, err := auth.NewPasswordHasher().Hash(SharedPassword)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.FirstName()), gofakeit.Number(10, 9999))
		user := models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@%s", username, gofakeit.DomainName()),
			Password:     hashed,
			ProfileImage: models.DefaultProfileImage,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to seed user %q: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedConversations gives each user a short companion exchange.
func (s *Seeder) SeedConversations(users []models.User, exchanges int) error {
	ctx := context.Background()
	for _, user := range users {
		for i := 0; i < exchanges; i++ {
			text := openers[gofakeit.Number(0, len(openers)-1)]
			if err := s.db.Create(&models.ChatMessage{
				UserID: user.ID,
				Sender: models.SenderUser,
				Text:   text,
			}).Error; err != nil {
				return err
			}

			reply, err := s.responder.Reply(ctx, user.ID, text)
			if err != nil {
				return err
			}
			if err := s.db.Create(&models.ChatMessage{
				UserID: user.ID,
				Sender: models.SenderCompanion,
				Text:   reply,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// SeedJournals gives each user a handful of journal entries.
func (s *Seeder) SeedJournals(users []models.User, entries int) error {
	for _, user := range users {
		for i := 0; i < entries; i++ {
			if err := s.db.Create(&models.Journal{
				UserID:  user.ID,
				Title:   gofakeit.Sentence(4),
				Mood:    moods[gofakeit.Number(0, len(moods)-1)],
				Content: gofakeit.Paragraph(1, 3, 12, " "),
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
