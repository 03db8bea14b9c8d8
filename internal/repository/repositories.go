package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"messagerie/pkg/logger"
)

type Repositories struct {
	User     UserRepository
	Message  MessageRepository
	Presence PresenceRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:     NewUserRepository(db, log),
		Message:  NewMessageRepository(db, log),
		Presence: NewPresenceRepository(rdb, log),
	}
}
