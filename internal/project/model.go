package project

import (
	"time"

	"bugtracker-service/internal/user"

	"github.com/uptrace/bun"
)

type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Detail    string    `bun:"detail,nullzero" json:"detail,omitempty"`
	ManagerID int64     `bun:"manager_id,notnull" json:"manager"`
	Logo      string    `bun:"logo,nullzero" json:"logo,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Manager *user.User `bun:"rel:belongs-to,join:manager_id=id" json:"manager_detail,omitempty"`
}

// ProjectMember is the (project, user) join row. The composite unique
// constraint backstops concurrent duplicate inserts.
type ProjectMember struct {
	bun.BaseModel `bun:"table:project_members,alias:pm"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64     `bun:"project_id,notnull,unique:project_member" json:"project"`
	UserID    int64     `bun:"user_id,notnull,unique:project_member" json:"user"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type CreateRequest struct {
	Name   string `json:"name" validate:"required"`
	Detail string `json:"detail"`
	Logo   string `json:"logo"`
}

// UpdateRequest carries a partial project update; absent fields are untouched.
type UpdateRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1"`
	Detail *string `json:"detail"`
	Logo   *string `json:"logo"`
}

type AddMemberRequest struct {
	Project int64 `json:"project" validate:"required"`
	User    int64 `json:"user" validate:"required"`
}
