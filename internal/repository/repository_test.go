package repository

import (
	"context"
	"testing"
	"time"

	"haven/internal/database"
	"haven/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    email,
		Password: "$2a$10$fakehashfakehashfakehashfakehash",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Username: "ada", Email: "ada@example.com", Password: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", got.Username)
	assert.Equal(t, models.DefaultProfileImage, got.ProfileImage)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, user.ID, byEmail.ID)

	byName, err := repo.GetByUsername(ctx, "ada")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, user.ID, byName.ID)
}

func TestUserRepository_GetMissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	byEmail, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)

	byName, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, byName)

	_, err = repo.GetByID(ctx, 9999)
	assert.True(t, models.IsNotFound(err))
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	seedUser(t, db, "ada", "ada@example.com")

	err := repo.Create(ctx, &models.User{Username: "ada", Email: "other@example.com", Password: "hash"})
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)

	err = repo.Create(ctx, &models.User{Username: "other", Email: "ada@example.com", Password: "hash"})
	require.Error(t, err)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "ada", "ada@example.com")

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "newhash"))

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, "newhash", reloaded.Password)

	err := repo.UpdatePassword(ctx, 9999, "newhash")
	assert.True(t, models.IsNotFound(err))
}

func TestChatRepository_ListOrderedOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "ada", "ada@example.com")
	base := time.Now().Add(-time.Hour)

	for i, body := range []string{"first", "second", "third"} {
		msg := &models.ChatMessage{
			UserID:    user.ID,
			Sender:    models.SenderUser,
			Text:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(msg).Error)
	}

	messages, err := repo.ListByUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Text)
	assert.Equal(t, "third", messages[2].Text)
}

func TestChatRepository_DeleteByUserScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	owner := seedUser(t, db, "ada", "ada@example.com")
	other := seedUser(t, db, "bob", "bob@example.com")

	require.NoError(t, repo.Create(ctx, &models.ChatMessage{UserID: owner.ID, Sender: models.SenderUser, Text: "mine"}))
	require.NoError(t, repo.Create(ctx, &models.ChatMessage{UserID: owner.ID, Sender: models.SenderCompanion, Text: "reply"}))
	require.NoError(t, repo.Create(ctx, &models.ChatMessage{UserID: other.ID, Sender: models.SenderUser, Text: "theirs"}))

	deleted, err := repo.DeleteByUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.ListByUser(ctx, other.ID, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "theirs", remaining[0].Text)

	mine, err := repo.ListByUser(ctx, owner.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestJournalRepository_ListOrderedNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJournalRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "ada", "ada@example.com")
	base := time.Now().Add(-time.Hour)

	for i, title := range []string{"oldest", "middle", "newest"} {
		entry := &models.Journal{
			UserID:    user.ID,
			Title:     title,
			Mood:      "calm",
			Content:   "entry",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(entry).Error)
	}

	entries, err := repo.ListByUser(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "newest", entries[0].Title)
	assert.Equal(t, "oldest", entries[2].Title)
}

func TestJournalRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewJournalRepository(db)
	ctx := context.Background()

	user := seedUser(t, db, "ada", "ada@example.com")

	entry := &models.Journal{UserID: user.ID, Title: "day one", Mood: "hopeful", Content: "wrote things down"}
	require.NoError(t, repo.Create(ctx, entry))
	assert.NotZero(t, entry.ID)
}
