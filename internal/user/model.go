package user

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Role is the closed set of account roles. The zero value is RoleUnassigned:
// an account that registered without picking a role.
type Role string

const (
	RoleManager    Role = "manager"
	RoleQA         Role = "qa"
	RoleDeveloper  Role = "developer"
	RoleUnassigned Role = ""
)

// ParseRole maps a wire value onto the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleQA, RoleDeveloper, RoleUnassigned:
		return Role(s), nil
	}
	return RoleUnassigned, fmt.Errorf("unknown role %q", s)
}

func (r Role) Assigned() bool {
	return r == RoleManager || r == RoleQA || r == RoleDeveloper
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Email          string    `bun:"email,unique,notnull" json:"email"`
	Role           Role      `bun:"role,nullzero" json:"role"`
	Password       string    `bun:"password,notnull" json:"-"` // Never expose password in JSON
	MobileNumber   string    `bun:"mobile_number,nullzero" json:"mobile_number,omitempty"`
	ProfilePicture string    `bun:"profile_picture,nullzero" json:"profile_picture,omitempty"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	IsStaff        bool      `bun:"is_staff,notnull,default:false" json:"-"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	// ProfilePictureURL is derived from ProfilePicture and the media base URL.
	ProfilePictureURL string `bun:"-" json:"profile_picture_url,omitempty"`
}

// UpdateProfileRequest is the request body for PATCH /api/auth/me.
// All fields are optional; absent fields are left untouched.
type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	MobileNumber   *string `json:"mobile_number" validate:"omitempty,max=17"`
	ProfilePicture *string `json:"profile_picture"`
}
