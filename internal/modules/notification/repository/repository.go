package repository

import (
	"context"
	"errors"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/internal/modules/notification/dto"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, category string, limit, offset int) ([]entity.Notification, error)
	MarkClicked(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	CategoryCounts(ctx context.Context, userID uuid.UUID) ([]dto.CategoryCount, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Notification, error) {
	var notification entity.Notification
	err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, category string, limit, offset int) ([]entity.Notification, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if category != "" && category != "all" {
		query = query.Where("category = ?", category)
	}

	var notifications []entity.Notification
	err := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Preload("Sender", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "username", "full_name", "avatar_url", "is_online")
		}).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) MarkClicked(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"read": true, "clicked": true}).Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Deleting an already-dismissed notification affects zero rows, which is
	// exactly the idempotence we want.
	return r.db.WithContext(ctx).Delete(&entity.Notification{}, "id = ?", id).Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *notificationRepository) CategoryCounts(ctx context.Context, userID uuid.UUID) ([]dto.CategoryCount, error) {
	var counts []dto.CategoryCount
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Select("category, COUNT(*) as count").
		Where("user_id = ?", userID).
		Group("category").
		Order("category asc").
		Scan(&counts).Error
	return counts, err
}
