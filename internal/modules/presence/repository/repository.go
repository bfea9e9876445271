package repository

import (
	"context"
	"fmt"

	"anoa.com/sociablechat/internal/entity"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const onlineSetKey = "presence:online"

// PresenceRepository stores the online flag durably in postgres and mirrors
// it into a redis set for cheap membership checks. Redis is optional; every
// read falls back to the users table.
type PresenceRepository interface {
	SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool) error
	OnlineStatus(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type presenceRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

func NewPresenceRepository(db *gorm.DB, redisClient *redis.Client) PresenceRepository {
	return &presenceRepository{db: db, redisClient: redisClient}
}

func (r *presenceRepository) SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("is_online", isOnline).Error
	if err != nil {
		return fmt.Errorf("failed to update online flag: %w", err)
	}

	if r.redisClient != nil {
		var redisErr error
		if isOnline {
			redisErr = r.redisClient.SAdd(ctx, onlineSetKey, userID.String()).Err()
		} else {
			redisErr = r.redisClient.SRem(ctx, onlineSetKey, userID.String()).Err()
		}
		if redisErr != nil {
			// DB already holds the truth; the mirror catches up on next update.
			return nil
		}
	}

	return nil
}

func (r *presenceRepository) OnlineStatus(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	status := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return status, nil
	}

	if r.redisClient != nil {
		members := make([]any, len(userIDs))
		for i, id := range userIDs {
			members[i] = id.String()
		}
		flags, err := r.redisClient.SMIsMember(ctx, onlineSetKey, members...).Result()
		if err == nil && len(flags) == len(userIDs) {
			for i, id := range userIDs {
				status[id] = flags[i]
			}
			return status, nil
		}
	}

	var onlineIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id IN ? AND is_online = ?", userIDs, true).
		Pluck("id", &onlineIDs).Error
	if err != nil {
		return nil, err
	}

	for _, id := range userIDs {
		status[id] = false
	}
	for _, id := range onlineIDs {
		status[id] = true
	}

	return status, nil
}
