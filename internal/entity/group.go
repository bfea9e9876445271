package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group is a named, admin-owned multi-member thread. The admin is always a
// member; when the admin leaves, the earliest-joined remaining member is
// promoted.
type Group struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:100;not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description"`
	AdminID       uuid.UUID `gorm:"type:uuid;not null" json:"admin_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`

	Members  []GroupMember  `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members"`
	Messages []GroupMessage `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"messages"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type GroupMember struct {
	GroupID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type GroupMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Content   string    `gorm:"type:text" json:"content"`
	ImageURL  *string   `gorm:"type:text" json:"image_url,omitempty"`
	Type      string    `gorm:"size:20;not null;default:text" json:"type"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Sender *User              `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReadBy []GroupMessageRead `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"read_by"`
}

func (m *GroupMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type GroupMessageRead struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}
