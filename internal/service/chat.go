package service

import (
	"context"
	"strings"

	"messagerie/internal/domain"
	"messagerie/internal/repository"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

// ChatService serves room history and presence reads outside the live
// websocket path, with the same formatting the hub uses for replay.
type ChatService interface {
	RoomHistory(ctx context.Context, roomCode string) ([]domain.DisplayMessage, error)
	OnlineUsers(ctx context.Context, roomCode string) ([]domain.OnlineUser, error)
}

type chatService struct {
	messageRepo  repository.MessageRepository
	presenceRepo repository.PresenceRepository
	log          logger.Logger
}

func NewChatService(messageRepo repository.MessageRepository, presenceRepo repository.PresenceRepository, log logger.Logger) ChatService {
	return &chatService{
		messageRepo:  messageRepo,
		presenceRepo: presenceRepo,
		log:          log,
	}
}

func (s *chatService) RoomHistory(ctx context.Context, roomCode string) ([]domain.DisplayMessage, error) {
	if strings.TrimSpace(roomCode) == "" {
		return nil, errors.ErrInvalidRoom
	}

	messages, err := s.messageRepo.ListByRoom(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	history := make([]domain.DisplayMessage, 0, len(messages))
	for _, message := range messages {
		history = append(history, message.Display())
	}
	return history, nil
}

func (s *chatService) OnlineUsers(ctx context.Context, roomCode string) ([]domain.OnlineUser, error) {
	if strings.TrimSpace(roomCode) == "" {
		return nil, errors.ErrInvalidRoom
	}
	return s.presenceRepo.ListOnline(ctx, roomCode)
}
