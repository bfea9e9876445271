package service

import (
	"context"
	"log"

	presenceRepo "anoa.com/sociablechat/internal/modules/presence/repository"
	userDto "anoa.com/sociablechat/internal/modules/user/dto"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	"github.com/google/uuid"
)

// PresenceService tracks who is online. Updates are best-effort: staleness is
// acceptable and failures must never block the caller (the update fires
// during login, tab switches and page unload).
type PresenceService interface {
	SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool)
	OnlineFriends(ctx context.Context, userID uuid.UUID) ([]userDto.UserSummary, error)
	AllFriends(ctx context.Context, userID uuid.UUID) ([]userDto.UserSummary, error)
}

type presenceService struct {
	presence presenceRepo.PresenceRepository
	users    userRepo.UserRepository
}

func NewPresenceService(presence presenceRepo.PresenceRepository, users userRepo.UserRepository) PresenceService {
	return &presenceService{presence: presence, users: users}
}

func (s *presenceService) SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool) {
	if err := s.presence.SetOnline(ctx, userID, isOnline); err != nil {
		log.Printf("presence update failed for %s: %v", userID, err)
	}
}

func (s *presenceService) OnlineFriends(ctx context.Context, userID uuid.UUID) ([]userDto.UserSummary, error) {
	friends, err := s.annotatedFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	online := make([]userDto.UserSummary, 0, len(friends))
	for _, f := range friends {
		if f.IsOnline {
			online = append(online, f)
		}
	}
	return online, nil
}

func (s *presenceService) AllFriends(ctx context.Context, userID uuid.UUID) ([]userDto.UserSummary, error) {
	return s.annotatedFriends(ctx, userID)
}

func (s *presenceService) annotatedFriends(ctx context.Context, userID uuid.UUID) ([]userDto.UserSummary, error) {
	friends, err := s.users.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(friends))
	for i := range friends {
		ids[i] = friends[i].ID
	}

	status, err := s.presence.OnlineStatus(ctx, ids)
	if err != nil {
		// Fall back to whatever the directory row says.
		log.Printf("presence lookup failed for %s: %v", userID, err)
		status = nil
	}

	result := make([]userDto.UserSummary, len(friends))
	for i := range friends {
		summary := userDto.ToUserSummary(&friends[i])
		if status != nil {
			summary.IsOnline = status[friends[i].ID]
		}
		result[i] = summary
	}

	return result, nil
}
