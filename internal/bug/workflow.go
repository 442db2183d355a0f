package bug

import (
	"errors"
	"fmt"
	"strings"

	"bugtracker-service/internal/user"
)

// Authorization and status-workflow rules, expressed as pure functions of
// (caller identity, resource ownership) so they can be tested without the
// transport or storage layers.

var (
	ErrNotProjectMember        = errors.New("you are not assigned to this project")
	ErrOnlyQACanCreate         = errors.New("only QA can create bugs")
	ErrNotAssignee             = errors.New("you can only update bugs assigned to you")
	ErrNotBugProjectManager    = errors.New("you are not the manager of this project")
	ErrAttachmentDeveloperOnly = errors.New("only developers can add or update bug attachments")
	ErrAttachmentNotObject     = errors.New("bug attachment must be a JSON object or null")
)

// StatusError reports an illegal type/status combination, naming both.
type StatusError struct {
	Status Status
	Type   BugType
}

func (e *StatusError) Error() string {
	allowed := ValidStatuses(e.Type)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid status %q for type %q, expected one of: %s",
		e.Status, e.Type, strings.Join(names, ", "))
}

var validStatuses = map[BugType][]Status{
	TypeBug:     {StatusNew, StatusStarted, StatusResolved},
	TypeFeature: {StatusNew, StatusStarted, StatusCompleted},
}

// ValidStatuses returns the legal statuses for a bug type.
func ValidStatuses(t BugType) []Status {
	return validStatuses[t]
}

func ValidStatus(t BugType, s Status) bool {
	for _, allowed := range validStatuses[t] {
		if s == allowed {
			return true
		}
	}
	return false
}

// ValidateStatus enforces the type/status invariant on every create/update.
func ValidateStatus(t BugType, s Status) error {
	if !ValidStatus(t, s) {
		return &StatusError{Status: s, Type: t}
	}
	return nil
}

// CanCreate gates bug creation: the caller must be a member of the target
// project and hold role qa. Membership is checked first, matching the
// endpoint's error precedence.
func CanCreate(caller user.Identity, isMember bool) error {
	if !isMember {
		return ErrNotProjectMember
	}
	if caller.Role != user.RoleQA {
		return ErrOnlyQACanCreate
	}
	return nil
}

// CanMutate gates bug update/delete: developers only on bugs assigned to
// them, managers only on bugs in projects they manage. QA has no extra
// restriction; they may mutate any bug visible to them.
func CanMutate(caller user.Identity, assigneeID *int64, projectManagerID int64) error {
	switch caller.Role {
	case user.RoleDeveloper:
		if assigneeID == nil || *assigneeID != caller.UserID {
			return ErrNotAssignee
		}
	case user.RoleManager:
		if projectManagerID != caller.UserID {
			return ErrNotBugProjectManager
		}
	}
	return nil
}

// CanChangeAttachment restricts attachment changes to developers.
func CanChangeAttachment(role user.Role) error {
	if role != user.RoleDeveloper {
		return ErrAttachmentDeveloperOnly
	}
	return nil
}
