package repository

import (
	"context"

	"haven/internal/models"

	"gorm.io/gorm"
)

// JournalRepository defines persistence operations for journal entries.
type JournalRepository interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Journal, error)
	Create(ctx context.Context, entry *models.Journal) error
}

type journalRepository struct {
	db *gorm.DB
}

// NewJournalRepository returns a new JournalRepository implementation.
func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Journal, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var entries []models.Journal
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}

func (r *journalRepository) Create(ctx context.Context, entry *models.Journal) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
