package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/internal/modules/notification/dto"
	notifRepo "anoa.com/sociablechat/internal/modules/notification/repository"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	feedPageSize   = 50
	unreadCacheTTL = 30 * time.Second
)

type NotificationService interface {
	Create(ctx context.Context, input dto.CreateNotificationInput) (*entity.Notification, error)
	List(ctx context.Context, userID uuid.UUID, category string) (*dto.NotificationFeed, error)
	MarkClicked(ctx context.Context, id, actorID uuid.UUID) error
	Dismiss(ctx context.Context, id, actorID uuid.UUID) error
	ExecuteAction(ctx context.Context, id uuid.UUID, actionIndex int, actorID uuid.UUID) (*dto.ActionResult, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo         notifRepo.NotificationRepository
	redisClient  *redis.Client
	actionCaller ActionCaller
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client, actionCaller ActionCaller) NotificationService {
	return &notificationService{
		repo:         repo,
		redisClient:  redisClient,
		actionCaller: actionCaller,
	}
}

func (s *notificationService) Create(ctx context.Context, input dto.CreateNotificationInput) (*entity.Notification, error) {
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperror.New(400, "notification message is required", apperror.ErrInvalidInput)
	}
	for _, action := range input.Actions {
		if !action.Action.Valid() {
			return nil, apperror.New(400, fmt.Sprintf("unknown action kind %q", action.Action), apperror.ErrInvalidInput)
		}
	}

	category := input.Category
	if category == "" {
		category = entity.CategorySystem
	}
	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}

	notification := &entity.Notification{
		UserID:   input.Recipient,
		SenderID: input.Sender,
		Icon:     input.Icon,
		Category: category,
		Title:    input.Title,
		Message:  input.Message,
		Priority: priority,
		Link:     input.Link,
		Actions:  input.Actions,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	s.invalidateUnreadCache(ctx, input.Recipient)

	// Push to the live feed if redis is around; pollers catch up regardless.
	if s.redisClient != nil {
		channel := fmt.Sprintf("user_notifications:%s", input.Recipient)
		if payload, err := json.Marshal(notification); err == nil {
			s.redisClient.Publish(ctx, channel, payload)
		}
	}

	return notification, nil
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, category string) (*dto.NotificationFeed, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, category, feedPageSize, 0)
	if err != nil {
		return nil, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}

	categoryCounts, err := s.repo.CategoryCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &dto.NotificationFeed{
		Notifications:  notifications,
		UnreadCount:    unread,
		CategoryCounts: categoryCounts,
	}, nil
}

func (s *notificationService) MarkClicked(ctx context.Context, id, actorID uuid.UUID) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if notification.UserID != actorID {
		return apperror.ErrForbidden
	}

	// Already-clicked is fine; the update is a no-op.
	if err := s.repo.MarkClicked(ctx, id); err != nil {
		return err
	}

	s.invalidateUnreadCache(ctx, actorID)
	return nil
}

func (s *notificationService) Dismiss(ctx context.Context, id, actorID uuid.UUID) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		// A second dismiss finds nothing and silently succeeds.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if notification.UserID != actorID {
		return apperror.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateUnreadCache(ctx, actorID)
	return nil
}

func (s *notificationService) ExecuteAction(ctx context.Context, id uuid.UUID, actionIndex int, actorID uuid.UUID) (*dto.ActionResult, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if notification.UserID != actorID {
		return nil, apperror.ErrForbidden
	}

	if actionIndex < 0 || actionIndex >= len(notification.Actions) {
		return nil, apperror.New(400, "action index out of range", apperror.ErrInvalidInput)
	}
	action := notification.Actions[actionIndex]

	switch action.Action {
	case entity.ActionNavigate:
		if err := s.repo.MarkClicked(ctx, id); err != nil {
			return nil, err
		}
		s.invalidateUnreadCache(ctx, actorID)
		return &dto.ActionResult{Kind: entity.ActionNavigate, Target: action.Value}, nil

	case entity.ActionAPICall:
		if err := s.actionCaller.Call(ctx, action.Value, id); err != nil {
			return nil, fmt.Errorf("action endpoint %q failed: %w", action.Value, err)
		}
		if err := s.repo.MarkClicked(ctx, id); err != nil {
			return nil, err
		}
		s.invalidateUnreadCache(ctx, actorID)
		return &dto.ActionResult{Kind: entity.ActionAPICall, Endpoint: action.Value}, nil

	case entity.ActionDismiss:
		if err := s.repo.Delete(ctx, id); err != nil {
			return nil, err
		}
		s.invalidateUnreadCache(ctx, actorID)
		return &dto.ActionResult{Kind: entity.ActionDismiss}, nil

	default:
		// Stored rows may predate the current action set; fail closed.
		return nil, apperror.New(400, fmt.Sprintf("unknown action kind %q", action.Action), apperror.ErrInvalidInput)
	}
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := unreadCacheKey(userID)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, key).Int64(); err == nil {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.redisClient != nil {
		s.redisClient.SetEx(ctx, key, count, unreadCacheTTL)
	}

	return count, nil
}

func (s *notificationService) invalidateUnreadCache(ctx context.Context, userID uuid.UUID) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, unreadCacheKey(userID))
	}
}

func unreadCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}
