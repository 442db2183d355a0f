package bug

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bugtracker-service/internal/user"

	"github.com/uptrace/bun"
)

// BugType distinguishes defect reports from feature requests. Each type has
// its own terminal status: bugs are resolved, features are completed.
type BugType string

const (
	TypeBug     BugType = "bug"
	TypeFeature BugType = "feature"
)

var (
	ErrUnknownType   = errors.New("unknown bug type")
	ErrUnknownStatus = errors.New("unknown status")
)

func ParseType(s string) (BugType, error) {
	switch BugType(s) {
	case TypeBug, TypeFeature:
		return BugType(s), nil
	case "":
		return TypeBug, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownType, s)
}

type Status string

const (
	StatusNew       Status = "new"
	StatusStarted   Status = "started"
	StatusResolved  Status = "resolved"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusStarted, StatusResolved, StatusCompleted:
		return Status(s), nil
	case "":
		return StatusNew, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownStatus, s)
}

type Bug struct {
	bun.BaseModel `bun:"table:bugs,alias:b"`

	ID         int64                  `bun:"id,pk,autoincrement" json:"id"`
	ProjectID  int64                  `bun:"project_id,notnull,unique:bug_title_per_project" json:"project"`
	Title      string                 `bun:"title,notnull,unique:bug_title_per_project" json:"title"`
	Detail     string                 `bun:"detail,nullzero" json:"detail,omitempty"`
	Deadline   *time.Time             `bun:"deadline,nullzero" json:"deadline,omitempty"`
	Type       BugType                `bun:"type,notnull,default:'bug'" json:"type"`
	Status     Status                 `bun:"status,notnull,default:'new'" json:"status"`
	AssigneeID *int64                 `bun:"assignee_id,nullzero" json:"assignee_id,omitempty"`
	CreatorID  int64                  `bun:"creator_id,notnull" json:"creator_id"`
	Attachment map[string]interface{} `bun:"bug_attachment,type:jsonb,nullzero" json:"bug_attachment,omitempty"`
	CreatedAt  time.Time              `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time              `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Assignee *user.User `bun:"rel:belongs-to,join:assignee_id=id" json:"assignee,omitempty"`
	Creator  *user.User `bun:"rel:belongs-to,join:creator_id=id" json:"creator,omitempty"`
}

type CreateRequest struct {
	Project    int64           `json:"project" validate:"required"`
	Title      string          `json:"title" validate:"required"`
	Detail     string          `json:"detail"`
	Deadline   *time.Time      `json:"deadline"`
	Type       string          `json:"type"`
	Status     string          `json:"status"`
	Assignee   *int64          `json:"assignee_id"`
	Attachment json.RawMessage `json:"bug_attachment,omitempty"`
}

// UpdateRequest carries a partial bug update; absent fields are untouched.
// Attachment stays raw so a non-object payload can be rejected by name.
type UpdateRequest struct {
	Title      *string         `json:"title" validate:"omitempty,min=1"`
	Detail     *string         `json:"detail"`
	Deadline   *time.Time      `json:"deadline"`
	Type       *string         `json:"type"`
	Status     *string         `json:"status"`
	Assignee   *int64          `json:"assignee_id"`
	Attachment json.RawMessage `json:"bug_attachment,omitempty"`
}
