package service

import (
	"context"
	"strings"

	"haven/internal/middleware"
	"haven/internal/models"
	"haven/internal/repository"
)

// MaxChatMessageLength bounds a single chat submission.
const MaxChatMessageLength = 2000

// ChatService manages companion conversations.
type ChatService struct {
	chats     repository.ChatRepository
	responder Responder
}

// NewChatService wires a ChatService from its dependencies.
func NewChatService(chats repository.ChatRepository, responder Responder) *ChatService {
	return &ChatService{chats: chats, responder: responder}
}

// History returns the user's conversation, oldest first.
func (s *ChatService) History(ctx context.Context, userID uint) ([]models.ChatMessage, error) {
	return s.chats.ListByUser(ctx, userID, 0)
}

// Send persists the user's message, obtains the companion reply and persists
// it too. Both stored messages are returned.
func (s *ChatService) Send(ctx context.Context, userID uint, text string) (*models.ChatMessage, *models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, models.NewValidationError("Message cannot be empty.")
	}
	if len(text) > MaxChatMessageLength {
		return nil, nil, models.NewValidationError("Message is too long.")
	}

	userMsg := &models.ChatMessage{
		UserID: userID,
		Sender: models.SenderUser,
		Text:   text,
	}
	if err := s.chats.Create(ctx, userMsg); err != nil {
		return nil, nil, err
	}

	reply, err := s.responder.Reply(ctx, userID, text)
	if err != nil {
		// The user's message is already stored; a responder failure gets a
		// neutral line instead of losing the turn.
		middleware.Logger.ErrorContext(ctx, "companion responder failed", "user_id", userID, "error", err.Error())
		reply = "I'm having trouble finding the right words just now. Could you tell me that again?"
	}

	companionMsg := &models.ChatMessage{
		UserID: userID,
		Sender: models.SenderCompanion,
		Text:   reply,
	}
	if err := s.chats.Create(ctx, companionMsg); err != nil {
		return nil, nil, err
	}

	return userMsg, companionMsg, nil
}

// DeleteConversation removes the user's entire chat history and reports how
// many messages were removed.
func (s *ChatService) DeleteConversation(ctx context.Context, userID uint) (int64, error) {
	deleted, err := s.chats.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	middleware.Logger.InfoContext(ctx, "conversation deleted", "user_id", userID, "messages", deleted)
	return deleted, nil
}
