package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/internal/modules/conversation/dto"
	convRepo "anoa.com/sociablechat/internal/modules/conversation/repository"
	presenceRepo "anoa.com/sociablechat/internal/modules/presence/repository"
	userDto "anoa.com/sociablechat/internal/modules/user/dto"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	"anoa.com/sociablechat/pkg/apperror"
	"anoa.com/sociablechat/pkg/storage"
	"github.com/google/uuid"
)

const imagePreview = "\U0001F4F7 Photo"

type ConversationService interface {
	GetOrCreate(ctx context.Context, userID, otherID uuid.UUID) (*dto.ConversationResponse, error)
	SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content, msgType string) (*dto.ConversationResponse, error)
	SendImageMessage(ctx context.Context, conversationID, senderID uuid.UUID, fileName string, file io.Reader) (*dto.ConversationResponse, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]dto.ConversationListItem, error)
}

type conversationService struct {
	repo         convRepo.ConversationRepository
	users        userRepo.UserRepository
	presence     presenceRepo.PresenceRepository
	imageStorage storage.ImageStorage
	uploadFolder string
}

func NewConversationService(
	repo convRepo.ConversationRepository,
	users userRepo.UserRepository,
	presence presenceRepo.PresenceRepository,
	imageStorage storage.ImageStorage,
	uploadFolder string,
) ConversationService {
	return &conversationService{
		repo:         repo,
		users:        users,
		presence:     presence,
		imageStorage: imageStorage,
		uploadFolder: uploadFolder,
	}
}

func (s *conversationService) GetOrCreate(ctx context.Context, userID, otherID uuid.UUID) (*dto.ConversationResponse, error) {
	if userID == otherID {
		return nil, apperror.New(400, "cannot start a conversation with yourself", apperror.ErrInvalidInput)
	}

	other, err := s.users.FindByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	conv, err := s.repo.GetOrCreate(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}

	return s.toResponse(ctx, conv, userID, other), nil
}

func (s *conversationService) SendMessage(ctx context.Context, conversationID, senderID uuid.UUID, content, msgType string) (*dto.ConversationResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.New(400, "message content cannot be empty", apperror.ErrInvalidInput)
	}
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	if msgType != entity.MessageTypeText {
		return nil, apperror.New(400, "unsupported message type", apperror.ErrInvalidInput)
	}

	conv, err := s.authorizedConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	msg := entity.ConversationMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	if err := s.repo.AppendMessage(ctx, &msg, content); err != nil {
		return nil, err
	}

	return s.refetch(ctx, conv.ID, senderID)
}

func (s *conversationService) SendImageMessage(ctx context.Context, conversationID, senderID uuid.UUID, fileName string, file io.Reader) (*dto.ConversationResponse, error) {
	conv, err := s.authorizedConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	url, err := s.imageStorage.UploadImage(ctx, file, s.uploadFolder, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to store chat image: %w", err)
	}

	msg := entity.ConversationMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ImageURL:       &url,
		Type:           entity.MessageTypeImage,
	}
	if err := s.repo.AppendMessage(ctx, &msg, imagePreview); err != nil {
		return nil, err
	}

	return s.refetch(ctx, conv.ID, senderID)
}

func (s *conversationService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := s.authorizedConversation(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, conversationID, userID)
}

func (s *conversationService) List(ctx context.Context, userID uuid.UUID) ([]dto.ConversationListItem, error) {
	convs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	convIDs := make([]uuid.UUID, len(convs))
	otherIDs := make([]uuid.UUID, len(convs))
	for i := range convs {
		convIDs[i] = convs[i].ID
		otherIDs[i] = convs[i].OtherParticipant(userID)
	}

	unread, err := s.repo.UnreadCounts(ctx, userID, convIDs)
	if err != nil {
		return nil, err
	}

	others, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}
	othersByID := make(map[uuid.UUID]*entity.User, len(others))
	for i := range others {
		othersByID[others[i].ID] = &others[i]
	}

	status, err := s.presence.OnlineStatus(ctx, otherIDs)
	if err != nil {
		log.Printf("presence lookup failed while listing conversations: %v", err)
		status = nil
	}

	items := make([]dto.ConversationListItem, 0, len(convs))
	for i := range convs {
		other, ok := othersByID[convs[i].OtherParticipant(userID)]
		if !ok {
			continue
		}
		summary := userDto.ToUserSummary(other)
		if status != nil {
			summary.IsOnline = status[other.ID]
		}
		items = append(items, dto.ConversationListItem{
			ID:            convs[i].ID,
			Other:         summary,
			LastMessage:   convs[i].LastMessage,
			LastMessageAt: convs[i].LastMessageAt,
			UnreadCount:   unread[convs[i].ID],
		})
	}

	return items, nil
}

func (s *conversationService) authorizedConversation(ctx context.Context, conversationID, userID uuid.UUID) (*entity.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, apperror.ErrForbidden
	}
	return conv, nil
}

func (s *conversationService) refetch(ctx context.Context, conversationID, userID uuid.UUID) (*dto.ConversationResponse, error) {
	conv, err := s.repo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	other, err := s.users.FindByID(ctx, conv.OtherParticipant(userID))
	if err != nil {
		return nil, err
	}

	return s.toResponse(ctx, conv, userID, other), nil
}

func (s *conversationService) toResponse(ctx context.Context, conv *entity.Conversation, userID uuid.UUID, other *entity.User) *dto.ConversationResponse {
	summary := userDto.ToUserSummary(other)
	if status, err := s.presence.OnlineStatus(ctx, []uuid.UUID{other.ID}); err == nil {
		summary.IsOnline = status[other.ID]
	}

	resp := dto.ToConversationResponse(conv, &summary)
	return &resp
}
