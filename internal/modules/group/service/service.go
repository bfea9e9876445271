package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/internal/modules/group/dto"
	groupRepo "anoa.com/sociablechat/internal/modules/group/repository"
	notifDto "anoa.com/sociablechat/internal/modules/notification/dto"
	notifService "anoa.com/sociablechat/internal/modules/notification/service"
	presenceRepo "anoa.com/sociablechat/internal/modules/presence/repository"
	userDto "anoa.com/sociablechat/internal/modules/user/dto"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
)

type GroupService interface {
	Create(ctx context.Context, adminID uuid.UUID, req dto.CreateGroupRequest) (*dto.GroupResponse, error)
	Get(ctx context.Context, groupID, userID uuid.UUID) (*dto.GroupResponse, error)
	SendMessage(ctx context.Context, groupID, senderID uuid.UUID, content, msgType string) (*dto.GroupResponse, error)
	MarkRead(ctx context.Context, groupID, userID uuid.UUID) error
	Leave(ctx context.Context, groupID, userID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]dto.GroupListItem, error)
}

type groupService struct {
	repo          groupRepo.GroupRepository
	users         userRepo.UserRepository
	presence      presenceRepo.PresenceRepository
	notifications notifService.NotificationService
}

func NewGroupService(
	repo groupRepo.GroupRepository,
	users userRepo.UserRepository,
	presence presenceRepo.PresenceRepository,
	notifications notifService.NotificationService,
) GroupService {
	return &groupService{
		repo:          repo,
		users:         users,
		presence:      presence,
		notifications: notifications,
	}
}

func (s *groupService) Create(ctx context.Context, adminID uuid.UUID, req dto.CreateGroupRequest) (*dto.GroupResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.New(400, "group name is required", apperror.ErrInvalidInput)
	}

	memberIDs, err := s.parseInvitees(adminID, req.MemberIDs)
	if err != nil {
		return nil, err
	}
	if len(memberIDs) < 2 {
		return nil, apperror.New(400, "a group needs at least two other members", apperror.ErrInvalidInput)
	}

	// All invitees must exist before we touch the database.
	invitees, err := s.users.FindByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	if len(invitees) != len(memberIDs) {
		return nil, apperror.New(400, "one or more invited users do not exist", apperror.ErrInvalidInput)
	}

	admin, err := s.users.FindByID(ctx, adminID)
	if err != nil {
		return nil, err
	}

	group := entity.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		AdminID:     adminID,
	}
	if err := s.repo.Create(ctx, &group, memberIDs); err != nil {
		return nil, err
	}

	if err := s.appendSystemMessage(ctx, group.ID, adminID, fmt.Sprintf("%s created the group", admin.Username)); err != nil {
		return nil, err
	}

	for _, invitee := range invitees {
		s.notify(ctx, invitee.ID, adminID,
			"Added to a group",
			fmt.Sprintf("%s added you to %q", admin.Username, name),
			fmt.Sprintf("/groups/%s", group.ID))
	}

	return s.refetch(ctx, group.ID)
}

func (s *groupService) Get(ctx context.Context, groupID, userID uuid.UUID) (*dto.GroupResponse, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.refetch(ctx, groupID)
}

func (s *groupService) SendMessage(ctx context.Context, groupID, senderID uuid.UUID, content, msgType string) (*dto.GroupResponse, error) {
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

	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	msg := entity.GroupMessage{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
		Type:     msgType,
	}
	if err := s.repo.AppendMessage(ctx, &msg); err != nil {
		return nil, err
	}

	return s.refetch(ctx, groupID)
}

func (s *groupService) MarkRead(ctx context.Context, groupID, userID uuid.UUID) error {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, groupID, userID)
}

// Leave removes the caller from the group and records a system message. If
// the admin leaves, the earliest-joined remaining member takes over.
func (s *groupService) Leave(ctx context.Context, groupID, userID uuid.UUID) error {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return err
	}

	isMember, err := s.repo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperror.ErrForbidden
	}

	leaver, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}

	if err := s.appendSystemMessage(ctx, groupID, userID, fmt.Sprintf("%s left the group", leaver.Username)); err != nil {
		return err
	}

	if group.AdminID != userID {
		return nil
	}

	successor, err := s.repo.EarliestMember(ctx, groupID)
	if err != nil {
		// Last member out; the group stays admin-less and empty.
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.repo.SetAdmin(ctx, groupID, successor.UserID); err != nil {
		return err
	}

	promoted, err := s.users.FindByID(ctx, successor.UserID)
	if err != nil {
		return err
	}

	if err := s.appendSystemMessage(ctx, groupID, successor.UserID, fmt.Sprintf("%s is now the group admin", promoted.Username)); err != nil {
		return err
	}

	s.notify(ctx, successor.UserID, userID,
		"You are now group admin",
		fmt.Sprintf("You were promoted to admin of %q", group.Name),
		fmt.Sprintf("/groups/%s", groupID))

	return nil
}

func (s *groupService) List(ctx context.Context, userID uuid.UUID) ([]dto.GroupListItem, error) {
	groups, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	groupIDs := make([]uuid.UUID, len(groups))
	for i := range groups {
		groupIDs[i] = groups[i].ID
	}

	unread, err := s.repo.UnreadCounts(ctx, userID, groupIDs)
	if err != nil {
		return nil, err
	}

	items := make([]dto.GroupListItem, len(groups))
	for i := range groups {
		items[i] = dto.GroupListItem{
			ID:            groups[i].ID,
			Name:          groups[i].Name,
			Description:   groups[i].Description,
			MemberCount:   len(groups[i].Members),
			LastMessageAt: groups[i].LastMessageAt,
			UnreadCount:   unread[groups[i].ID],
		}
	}

	return items, nil
}

func (s *groupService) parseInvitees(adminID uuid.UUID, raw []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperror.New(400, fmt.Sprintf("invalid member id %q", v), apperror.ErrInvalidInput)
		}
		// The creator is added as admin regardless; skip duplicates.
		if id == adminID || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *groupService) requireMember(ctx context.Context, groupID, userID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, groupID); err != nil {
		return err
	}
	isMember, err := s.repo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return apperror.ErrForbidden
	}
	return nil
}

func (s *groupService) appendSystemMessage(ctx context.Context, groupID, actorID uuid.UUID, content string) error {
	msg := entity.GroupMessage{
		GroupID:  groupID,
		SenderID: actorID,
		Content:  content,
		Type:     entity.MessageTypeSystem,
	}
	return s.repo.AppendMessage(ctx, &msg)
}

// notify fires a group-category notification; failures are logged, never
// surfaced, since the group mutation already committed.
func (s *groupService) notify(ctx context.Context, recipient, sender uuid.UUID, title, message, link string) {
	_, err := s.notifications.Create(ctx, notifDto.CreateNotificationInput{
		Recipient: recipient,
		Sender:    &sender,
		Category:  entity.CategoryGroup,
		Title:     title,
		Message:   message,
		Priority:  entity.PriorityMedium,
		Link:      link,
	})
	if err != nil {
		log.Printf("failed to create group notification for %s: %v", recipient, err)
	}
}

func (s *groupService) refetch(ctx context.Context, groupID uuid.UUID) (*dto.GroupResponse, error) {
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	memberIDs := make([]uuid.UUID, len(group.Members))
	for i := range group.Members {
		memberIDs[i] = group.Members[i].UserID
	}

	status, err := s.presence.OnlineStatus(ctx, memberIDs)
	if err != nil {
		log.Printf("presence lookup failed for group %s: %v", groupID, err)
		status = nil
	}

	members := make([]dto.GroupMemberResponse, 0, len(group.Members))
	for i := range group.Members {
		m := group.Members[i]
		if m.User == nil {
			continue
		}
		summary := userDto.ToUserSummary(m.User)
		if status != nil {
			summary.IsOnline = status[m.UserID]
		}
		members = append(members, dto.GroupMemberResponse{
			UserSummary: summary,
			JoinedAt:    m.JoinedAt,
			IsAdmin:     m.UserID == group.AdminID,
		})
	}

	messages := make([]dto.GroupMessageResponse, len(group.Messages))
	for i := range group.Messages {
		messages[i] = dto.ToGroupMessageResponse(&group.Messages[i])
	}

	return &dto.GroupResponse{
		ID:            group.ID,
		Name:          group.Name,
		Description:   group.Description,
		AdminID:       group.AdminID,
		Members:       members,
		Messages:      messages,
		LastMessageAt: group.LastMessageAt,
		CreatedAt:     group.CreatedAt,
	}, nil
}
