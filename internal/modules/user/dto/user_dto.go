package dto

import (
	"anoa.com/sociablechat/internal/entity"
	"github.com/google/uuid"
)

// UserSummary is the public shape of a user in chat payloads.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	IsOnline  bool      `json:"is_online"`
}

func ToUserSummary(u *entity.User) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		AvatarURL: u.AvatarURL,
		IsOnline:  u.IsOnline,
	}
}

type SearchUsersRequest struct {
	Query string `form:"q" binding:"required,min=1,max=100"`
}
