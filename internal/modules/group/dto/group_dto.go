package dto

import (
	"time"

	"anoa.com/sociablechat/internal/entity"
	userDto "anoa.com/sociablechat/internal/modules/user/dto"
	"github.com/google/uuid"
)

type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=100"`
	Description string   `json:"description" binding:"omitempty,max=500"`
	MemberIDs   []string `json:"memberIds" binding:"required,min=2,dive,uuid"`
}

type SendGroupMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=text"`
}

type GroupMemberResponse struct {
	userDto.UserSummary
	JoinedAt time.Time `json:"joined_at"`
	IsAdmin  bool      `json:"is_admin"`
}

type GroupMessageResponse struct {
	ID        uuid.UUID     `json:"id"`
	SenderID  uuid.UUID     `json:"sender_id"`
	Content   string        `json:"content"`
	ImageURL  *string       `json:"image_url,omitempty"`
	Type      string        `json:"type"`
	CreatedAt time.Time     `json:"created_at"`
	ReadBy    []ReadReceipt `json:"read_by"`
}

type ReadReceipt struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// GroupResponse is the authoritative aggregate returned by every read and
// every mutation.
type GroupResponse struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	AdminID       uuid.UUID              `json:"admin_id"`
	Members       []GroupMemberResponse  `json:"members"`
	Messages      []GroupMessageResponse `json:"messages"`
	LastMessageAt time.Time              `json:"last_message_at"`
	CreatedAt     time.Time              `json:"created_at"`
}

type GroupListItem struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	MemberCount   int       `json:"member_count"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int64     `json:"unread_count"`
}

func ToGroupMessageResponse(m *entity.GroupMessage) GroupMessageResponse {
	receipts := make([]ReadReceipt, len(m.ReadBy))
	for i, r := range m.ReadBy {
		receipts[i] = ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt}
	}
	return GroupMessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		ReadBy:    receipts,
	}
}
