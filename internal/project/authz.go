package project

import (
	"errors"

	"bugtracker-service/internal/user"
)

var (
	ErrNotManager        = errors.New("only managers can modify projects")
	ErrNotProjectManager = errors.New("you are not the manager of this project")
)

// CanManage reports whether the caller may update or delete the project:
// role manager, and owner of this particular project.
func CanManage(caller user.Identity, p *Project) error {
	if caller.Role != user.RoleManager {
		return ErrNotManager
	}
	if p.ManagerID != caller.UserID {
		return ErrNotProjectManager
	}
	return nil
}

// CanAddMember gates membership changes on project ownership. Ownership alone
// is checked, not the role field: whoever created the project manages it.
func CanAddMember(caller user.Identity, p *Project) error {
	if p.ManagerID != caller.UserID {
		return ErrNotProjectManager
	}
	return nil
}
