package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification categories. The column is an open string so new categories can
// ship without a migration; these are the ones the clients know how to badge.
const (
	CategorySocial      = "social"
	CategorySecurity    = "security"
	CategoryPromotion   = "promotion"
	CategorySuggestion  = "suggestion"
	CategoryAchievement = "achievement"
	CategorySystem      = "system"
	CategoryGroup       = "group"
)

// Priorities govern visual emphasis only.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ActionKind is the closed set of things a notification button can do.
// Anything else read back from storage fails closed at dispatch time.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionAPICall  ActionKind = "api_call"
	ActionDismiss  ActionKind = "dismiss"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionNavigate, ActionAPICall, ActionDismiss:
		return true
	}
	return false
}

// NotificationAction is one button on a notification card. Value is a route
// target for navigate and an endpoint path for api_call.
type NotificationAction struct {
	Label  string     `json:"label"`
	Action ActionKind `json:"action"`
	Value  string     `json:"value,omitempty"`
	Style  string     `json:"style,omitempty"`
}

// NotificationActions is stored as a single jsonb column.
type NotificationActions []NotificationAction

func (a NotificationActions) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *NotificationActions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	}
	return fmt.Errorf("unsupported type %T for NotificationActions", src)
}

type Notification struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID           `gorm:"type:uuid;not null;index" json:"user_id"`
	SenderID  *uuid.UUID          `gorm:"type:uuid" json:"sender_id,omitempty"`
	Icon      string              `gorm:"size:20" json:"icon,omitempty"`
	Category  string              `gorm:"size:50;not null;default:system" json:"category"`
	Title     string              `gorm:"size:255" json:"title,omitempty"`
	Message   string              `gorm:"type:text;not null" json:"message"`
	Priority  string              `gorm:"size:20;not null;default:medium" json:"priority"`
	Link      string              `gorm:"type:text" json:"link,omitempty"`
	Actions   NotificationActions `gorm:"type:jsonb;default:'[]'" json:"actions"`
	Read      bool                `gorm:"default:false" json:"read"`
	Clicked   bool                `gorm:"default:false" json:"clicked"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
