package service

import (
	"messagerie/internal/config"
	"messagerie/internal/repository"
	"messagerie/pkg/logger"
)

type Services struct {
	Auth AuthService
	Chat ChatService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth: NewAuthService(repos.User, cfg.JWT, log),
		Chat: NewChatService(repos.Message, repos.Presence, log),
	}
}
