package bug

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"bugtracker-service/internal/db"
	"bugtracker-service/internal/project"
	"bugtracker-service/internal/user"
)

var ErrDuplicateTitle = errors.New("a bug with this title already exists in the project")

// Notifier is satisfied by the notification dispatcher.
type Notifier interface {
	BugAssigned(ctx context.Context, recipient *user.User, projectID int64, bugTitle, assignerName string) error
}

type Service interface {
	CreateBug(ctx context.Context, caller user.Identity, req CreateRequest) (*Bug, error)
	ListBugs(ctx context.Context, caller user.Identity) ([]Bug, error)
	GetBug(ctx context.Context, caller user.Identity, id int64) (*Bug, error)
	UpdateBug(ctx context.Context, caller user.Identity, id int64, req UpdateRequest) (*Bug, error)
	DeleteBug(ctx context.Context, caller user.Identity, id int64) error
}

type service struct {
	repo     Repository
	projects project.Repository
	users    user.Repository
	notifier Notifier
}

func NewService(repo Repository, projects project.Repository, users user.Repository, notifier Notifier) Service {
	return &service{
		repo:     repo,
		projects: projects,
		users:    users,
		notifier: notifier,
	}
}

// CreateBug persists a new bug on behalf of a QA project member. A supplied
// assignee id that does not resolve is ignored: the bug is created without an
// assignee and no error is returned to the caller.
func (s *service) CreateBug(ctx context.Context, caller user.Identity, req CreateRequest) (*Bug, error) {
	isMember, err := s.projects.IsMember(ctx, req.Project, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := CanCreate(caller, isMember); err != nil {
		return nil, err
	}

	bugType, err := ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if err := ValidateStatus(bugType, status); err != nil {
		return nil, err
	}

	attachment, err := parseAttachment(req.Attachment)
	if err != nil {
		return nil, err
	}

	b := &Bug{
		ProjectID:  req.Project,
		Title:      req.Title,
		Detail:     req.Detail,
		Deadline:   req.Deadline,
		Type:       bugType,
		Status:     status,
		CreatorID:  caller.UserID,
		Attachment: attachment,
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, err
	}

	if req.Assignee != nil {
		assignee, err := s.users.GetByID(ctx, *req.Assignee)
		if err == nil {
			created.AssigneeID = &assignee.ID
			if err := s.repo.Update(ctx, created); err != nil {
				return nil, err
			}
			if err := s.notifyAssignment(ctx, caller, assignee, created); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, user.ErrUserNotFound) {
			return nil, err
		}
		// unknown assignee id: bug persists without one
	}

	return s.repo.GetByID(ctx, created.ID)
}

// ListBugs is the role-scoped visibility filter: managers see bugs in
// projects they manage, QA see bugs they created, developers see bugs
// assigned to them, anyone else sees an empty result.
func (s *service) ListBugs(ctx context.Context, caller user.Identity) ([]Bug, error) {
	switch caller.Role {
	case user.RoleManager:
		return s.repo.ListForManager(ctx, caller.UserID)
	case user.RoleQA:
		return s.repo.ListForCreator(ctx, caller.UserID)
	case user.RoleDeveloper:
		return s.repo.ListForAssignee(ctx, caller.UserID)
	}
	return []Bug{}, nil
}

func (s *service) GetBug(ctx context.Context, caller user.Identity, id int64) (*Bug, error) {
	b, _, err := s.getVisible(ctx, caller, id)
	return b, err
}

func (s *service) UpdateBug(ctx context.Context, caller user.Identity, id int64, req UpdateRequest) (*Bug, error) {
	b, p, err := s.getVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if err := CanMutate(caller, b.AssigneeID, p.ManagerID); err != nil {
		return nil, err
	}

	if len(req.Attachment) > 0 && !bytes.Equal(req.Attachment, []byte("null")) {
		if err := CanChangeAttachment(caller.Role); err != nil {
			return nil, err
		}
		attachment, err := parseAttachment(req.Attachment)
		if err != nil {
			return nil, err
		}
		b.Attachment = attachment
	}

	if req.Title != nil {
		b.Title = *req.Title
	}
	if req.Detail != nil {
		b.Detail = *req.Detail
	}
	if req.Deadline != nil {
		b.Deadline = req.Deadline
	}
	if req.Type != nil {
		bugType, err := ParseType(*req.Type)
		if err != nil {
			return nil, err
		}
		b.Type = bugType
	}
	if req.Status != nil {
		status, err := ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		b.Status = status
	}

	// the invariant holds over the merged state, not just the changed fields
	if err := ValidateStatus(b.Type, b.Status); err != nil {
		return nil, err
	}

	var newAssignee *user.User
	if req.Assignee != nil && (b.AssigneeID == nil || *b.AssigneeID != *req.Assignee) {
		assignee, err := s.users.GetByID(ctx, *req.Assignee)
		if err != nil {
			return nil, err
		}
		b.AssigneeID = &assignee.ID
		newAssignee = assignee
	}

	if err := s.repo.Update(ctx, b); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateTitle
		}
		return nil, err
	}

	if newAssignee != nil {
		if err := s.notifyAssignment(ctx, caller, newAssignee, b); err != nil {
			return nil, err
		}
	}

	return s.repo.GetByID(ctx, b.ID)
}

func (s *service) DeleteBug(ctx context.Context, caller user.Identity, id int64) error {
	b, p, err := s.getVisible(ctx, caller, id)
	if err != nil {
		return err
	}

	if err := CanMutate(caller, b.AssigneeID, p.ManagerID); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

// getVisible fetches a bug and its project, applying the same role scoping
// as listing: an out-of-scope id is indistinguishable from a missing one.
func (s *service) getVisible(ctx context.Context, caller user.Identity, id int64) (*Bug, *project.Project, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	p, err := s.projects.GetByID(ctx, b.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	visible := false
	switch caller.Role {
	case user.RoleManager:
		visible = p.ManagerID == caller.UserID
	case user.RoleQA:
		visible = b.CreatorID == caller.UserID
	case user.RoleDeveloper:
		visible = b.AssigneeID != nil && *b.AssigneeID == caller.UserID
	}
	if !visible {
		return nil, nil, ErrBugNotFound
	}

	return b, p, nil
}

func (s *service) notifyAssignment(ctx context.Context, caller user.Identity, assignee *user.User, b *Bug) error {
	assigner, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return err
	}
	return s.notifier.BugAssigned(ctx, assignee, b.ProjectID, b.Title, assigner.Name)
}

func parseAttachment(raw json.RawMessage) (map[string]interface{}, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var attachment map[string]interface{}
	if err := json.Unmarshal(raw, &attachment); err != nil {
		return nil, ErrAttachmentNotObject
	}
	return attachment, nil
}
