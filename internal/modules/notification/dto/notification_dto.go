package dto

import (
	"anoa.com/sociablechat/internal/entity"
	"github.com/google/uuid"
)

// CreateNotificationInput is the in-process trigger payload; notifications
// are created by events (friend actions, group invites, system events), not
// by a public endpoint.
type CreateNotificationInput struct {
	Recipient uuid.UUID
	Sender    *uuid.UUID
	Icon      string
	Category  string
	Title     string
	Message   string
	Priority  string
	Link      string
	Actions   entity.NotificationActions
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// NotificationFeed is the composite read: everything a client needs to render
// the badge and the tabbed dropdown in one call.
type NotificationFeed struct {
	Notifications  []entity.Notification `json:"notifications"`
	UnreadCount    int64                 `json:"unreadCount"`
	CategoryCounts []CategoryCount       `json:"categoryCounts"`
}

type ExecuteActionRequest struct {
	NotificationID string `json:"notificationId" binding:"required,uuid"`
	ActionIndex    *int   `json:"actionIndex" binding:"required,min=0"`
}

// ActionResult tells the client what the dispatched action did.
type ActionResult struct {
	Kind     entity.ActionKind `json:"kind"`
	Target   string            `json:"target,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
}
