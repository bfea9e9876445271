package dto

import (
	"time"

	"anoa.com/sociablechat/internal/entity"
	userDto "anoa.com/sociablechat/internal/modules/user/dto"
	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=text"`
}

type MessageResponse struct {
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

// ConversationResponse is the authoritative aggregate returned by every read
// and every mutation; clients replace their local copy with it wholesale.
type ConversationResponse struct {
	ID            uuid.UUID            `json:"id"`
	Participants  []uuid.UUID          `json:"participants"`
	Other         *userDto.UserSummary `json:"other,omitempty"`
	Messages      []MessageResponse    `json:"messages"`
	LastMessage   string               `json:"last_message"`
	LastMessageAt time.Time            `json:"last_message_at"`
}

// ConversationListItem annotates a conversation for the sidebar: the other
// participant with live presence plus the caller's unread count.
type ConversationListItem struct {
	ID            uuid.UUID           `json:"id"`
	Other         userDto.UserSummary `json:"other"`
	LastMessage   string              `json:"last_message"`
	LastMessageAt time.Time           `json:"last_message_at"`
	UnreadCount   int64               `json:"unread_count"`
}

func ToMessageResponse(m *entity.ConversationMessage) MessageResponse {
	receipts := make([]ReadReceipt, len(m.ReadBy))
	for i, r := range m.ReadBy {
		receipts[i] = ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt}
	}
	return MessageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		ImageURL:  m.ImageURL,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
		ReadBy:    receipts,
	}
}

func ToConversationResponse(c *entity.Conversation, other *userDto.UserSummary) ConversationResponse {
	messages := make([]MessageResponse, len(c.Messages))
	for i := range c.Messages {
		messages[i] = ToMessageResponse(&c.Messages[i])
	}
	return ConversationResponse{
		ID:            c.ID,
		Participants:  []uuid.UUID{c.UserAID, c.UserBID},
		Other:         other,
		Messages:      messages,
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
	}
}
