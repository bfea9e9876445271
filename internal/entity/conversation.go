package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message type tags. System messages are synthetic membership announcements
// and only appear in groups.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeSystem = "system"
)

// Conversation is a direct, two-participant thread. PairKey is the sorted
// "<min>:<max>" of the two participant ids; its unique index is what makes
// get-or-create race-safe.
type Conversation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PairKey       string    `gorm:"size:80;uniqueIndex;not null" json:"-"`
	UserAID       uuid.UUID `gorm:"type:uuid;not null" json:"user_a_id"`
	UserBID       uuid.UUID `gorm:"type:uuid;not null" json:"user_b_id"`
	LastMessage   string    `gorm:"type:text" json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// PairKeyFor builds the order-independent conversation key for two users.
func PairKeyFor(a, b uuid.UUID) string {
	s := []string{a.String(), b.String()}
	if strings.Compare(s[0], s[1]) > 0 {
		s[0], s[1] = s[1], s[0]
	}
	return s[0] + ":" + s[1]
}

type ConversationMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Content        string    `gorm:"type:text" json:"content"`
	ImageURL       *string   `gorm:"type:text" json:"image_url,omitempty"`
	Type           string    `gorm:"size:20;not null;default:text" json:"type"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Sender *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReadBy []MessageRead `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"read_by"`
}

func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageRead records that a user has seen a conversation message. Rows are
// only ever inserted, never updated or deleted.
type MessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

func (MessageRead) TableName() string { return "conversation_message_reads" }
