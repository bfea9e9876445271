package service

import (
	"encoding/json"
	"fmt"
	"log"

	"anoa.com/sociablechat/internal/entity"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
)

const usersIndex = "users"

// SearchService maintains the user directory index used by friend search.
type SearchService interface {
	IndexUser(user *entity.User) error
	DeleteUser(id string) error
	SearchUsers(query string, limit int) ([]uuid.UUID, error)
}

type searchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &searchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *searchService) initIndexes() {
	searchable := []string{"username", "full_name"}
	if _, err := s.client.Index(usersIndex).UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("Failed to update users searchable attributes: %v", err)
	}
}

type userDocument struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (s *searchService) IndexUser(user *entity.User) error {
	doc := userDocument{
		ID:       user.ID.String(),
		Username: s.sanitizer.Sanitize(user.Username),
		FullName: s.sanitizer.Sanitize(user.FullName),
	}

	_, err := s.client.Index(usersIndex).AddDocuments([]userDocument{doc}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("failed to index user: %w", err)
	}
	return nil
}

func (s *searchService) DeleteUser(id string) error {
	_, err := s.client.Index(usersIndex).DeleteDocument(id)
	return err
}

func (s *searchService) SearchUsers(query string, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 20
	}

	raw, err := s.client.Index(usersIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}

	var resp struct {
		Hits []userDocument `json:"hits"`
	}
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func strPtr(s string) *string { return &s }
