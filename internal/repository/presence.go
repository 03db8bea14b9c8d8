package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"messagerie/internal/domain"
	"messagerie/pkg/logger"
)

// PresenceRepository tracks which users are currently online in a room.
// Best-effort: a Redis failure never blocks room operations.
type PresenceRepository interface {
	AddOnline(ctx context.Context, roomCode string, user domain.OnlineUser) error
	RemoveOnline(ctx context.Context, roomCode string, userID string) error
	ListOnline(ctx context.Context, roomCode string) ([]domain.OnlineUser, error)
}

type presenceRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPresenceRepository(rdb *redis.Client, log logger.Logger) PresenceRepository {
	return &presenceRepository{rdb: rdb, log: log}
}

const presenceTTL = 24 * time.Hour

func presenceKey(roomCode string) string {
	return fmt.Sprintf("chat:room:%s:online", roomCode)
}

func (r *presenceRepository) AddOnline(ctx context.Context, roomCode string, user domain.OnlineUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	key := presenceKey(roomCode)
	if err := r.rdb.HSet(ctx, key, user.UserID.String(), data).Err(); err != nil {
		r.log.Error("Failed to add online user", "room", roomCode, "error", err)
		return err
	}
	r.rdb.Expire(ctx, key, presenceTTL)

	return nil
}

func (r *presenceRepository) RemoveOnline(ctx context.Context, roomCode string, userID string) error {
	if err := r.rdb.HDel(ctx, presenceKey(roomCode), userID).Err(); err != nil {
		r.log.Error("Failed to remove online user", "room", roomCode, "error", err)
		return err
	}
	return nil
}

func (r *presenceRepository) ListOnline(ctx context.Context, roomCode string) ([]domain.OnlineUser, error) {
	result, err := r.rdb.HGetAll(ctx, presenceKey(roomCode)).Result()
	if err != nil {
		r.log.Error("Failed to list online users", "room", roomCode, "error", err)
		return nil, err
	}

	users := make([]domain.OnlineUser, 0, len(result))
	for _, data := range result {
		var user domain.OnlineUser
		if err := json.Unmarshal([]byte(data), &user); err != nil {
			r.log.Warn("Skipping malformed presence entry", "room", roomCode, "error", err)
			continue
		}
		users = append(users, user)
	}

	return users, nil
}
