package notification

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Type is the closed set of notification kinds.
type Type string

const (
	TypeProjectAddition Type = "project_addition"
	TypeBugAssignment   Type = "bug_assignment"
	TypeProfileUpdate   Type = "profile_update"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeProjectAddition, TypeBugAssignment, TypeProfileUpdate:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown notification type %q", s)
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID      int64     `bun:"user_id,notnull" json:"user_id"`
	Type        Type      `bun:"notification_type,notnull" json:"notification_type"`
	Title       string    `bun:"title,notnull" json:"title"`
	Message     string    `bun:"message,notnull" json:"message"`
	IsRead      bool      `bun:"is_read,notnull,default:false" json:"is_read"`
	RelatedLink string    `bun:"related_link,nullzero" json:"related_link,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// CreateRequest is the request body for POST /api/notifications. The created
// row is always owned by the caller.
type CreateRequest struct {
	Type        string `json:"notification_type" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Message     string `json:"message" validate:"required"`
	RelatedLink string `json:"related_link"`
}
