package service

import (
	"context"
	"log"

	searchService "anoa.com/sociablechat/internal/modules/search/service"
	"anoa.com/sociablechat/internal/modules/user/dto"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	"github.com/google/uuid"
)

// UserService exposes the directory operations the messaging core needs.
type UserService interface {
	Search(ctx context.Context, query string, limit int) ([]dto.UserSummary, error)
}

type userService struct {
	repo   userRepo.UserRepository
	search searchService.SearchService
}

func NewUserService(repo userRepo.UserRepository, search searchService.SearchService) UserService {
	return &userService{repo: repo, search: search}
}

func (s *userService) Search(ctx context.Context, query string, limit int) ([]dto.UserSummary, error) {
	ids, err := s.search.SearchUsers(query, limit)
	if err != nil {
		// Search index being down shouldn't break the page; return empty.
		log.Printf("user search unavailable: %v", err)
		return []dto.UserSummary{}, nil
	}

	users, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Preserve search ranking order.
	byID := make(map[uuid.UUID]dto.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = dto.ToUserSummary(&users[i])
	}

	results := make([]dto.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			results = append(results, u)
		}
	}

	return results, nil
}
