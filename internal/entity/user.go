package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is owned by the external account service; this service only reads
// profile fields and mutates the presence flag.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	FullName     string    `gorm:"size:100;not null" json:"full_name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	AvatarURL    *string   `gorm:"type:text" json:"avatar_url,omitempty"`
	IsOnline     bool      `gorm:"default:false" json:"is_online"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Friendship is a directed edge; the account service writes both directions
// when a friend request is accepted.
type Friendship struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	FriendID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"friend_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
