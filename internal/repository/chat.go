package repository

import (
	"context"

	"haven/internal/cache"
	"haven/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines persistence operations for chat messages.
type ChatRepository interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error)
	Create(ctx context.Context, message *models.ChatMessage) error
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository returns a new ChatRepository implementation.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	var messages []models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *chatRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateConversation(ctx, message.UserID)
	return nil
}

func (r *chatRepository) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ChatMessage{})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	cache.InvalidateConversation(ctx, userID)
	return result.RowsAffected, nil
}
