package project

import (
	"context"
	"errors"

	"bugtracker-service/internal/db"
	"bugtracker-service/internal/user"
)

var ErrDuplicateMember = errors.New("user already member")

// Notifier is satisfied by the notification dispatcher.
type Notifier interface {
	ProjectCreated(ctx context.Context, recipient *user.User, projectID int64, projectName string) error
	MemberAdded(ctx context.Context, recipient *user.User, projectID int64, projectName, managerName string) error
}

type Service interface {
	CreateProject(ctx context.Context, caller user.Identity, req CreateRequest) (*Project, error)
	ListProjects(ctx context.Context, caller user.Identity) ([]Project, error)
	GetProject(ctx context.Context, caller user.Identity, id int64) (*Project, error)
	UpdateProject(ctx context.Context, caller user.Identity, id int64, req UpdateRequest) (*Project, error)
	DeleteProject(ctx context.Context, caller user.Identity, id int64) error
	AddMember(ctx context.Context, caller user.Identity, req AddMemberRequest) (*ProjectMember, error)
}

type service struct {
	repo     Repository
	users    user.Repository
	notifier Notifier
}

func NewService(repo Repository, users user.Repository, notifier Notifier) Service {
	return &service{
		repo:     repo,
		users:    users,
		notifier: notifier,
	}
}

// CreateProject makes the caller the project's manager and auto-enrolls them
// as a member.
func (s *service) CreateProject(ctx context.Context, caller user.Identity, req CreateRequest) (*Project, error) {
	p := &Project{
		Name:      req.Name,
		Detail:    req.Detail,
		ManagerID: caller.UserID,
		Logo:      req.Logo,
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	member := &ProjectMember{ProjectID: created.ID, UserID: caller.UserID}
	if err := s.repo.AddMember(ctx, member); err != nil && !db.IsUniqueViolation(err) {
		return nil, err
	}

	creator, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.ProjectCreated(ctx, creator, created.ID, created.Name); err != nil {
		return nil, err
	}

	return created, nil
}

// ListProjects is the role-scoped visibility filter: managers see owned
// projects, qa/developers see projects where they hold membership, anyone
// else sees an empty result.
func (s *service) ListProjects(ctx context.Context, caller user.Identity) ([]Project, error) {
	if !caller.Role.Assigned() {
		return []Project{}, nil
	}
	if caller.Role == user.RoleManager {
		return s.repo.ListForManager(ctx, caller.UserID)
	}
	return s.repo.ListForMember(ctx, caller.UserID)
}

func (s *service) GetProject(ctx context.Context, caller user.Identity, id int64) (*Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	visible, err := s.isVisible(ctx, caller, p)
	if err != nil {
		return nil, err
	}
	if !visible {
		// out-of-scope ids are indistinguishable from missing ones
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (s *service) UpdateProject(ctx context.Context, caller user.Identity, id int64, req UpdateRequest) (*Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := CanManage(caller, p); err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Detail != nil {
		p.Detail = *req.Detail
	}
	if req.Logo != nil {
		p.Logo = *req.Logo
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) DeleteProject(ctx context.Context, caller user.Identity, id int64) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := CanManage(caller, p); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

// AddMember is manager-gated and rejects duplicate pairs before the insert;
// the composite unique constraint settles concurrent duplicates.
func (s *service) AddMember(ctx context.Context, caller user.Identity, req AddMemberRequest) (*ProjectMember, error) {
	p, err := s.repo.GetByID(ctx, req.Project)
	if err != nil {
		return nil, err
	}

	if err := CanAddMember(caller, p); err != nil {
		return nil, err
	}

	exists, err := s.repo.IsMember(ctx, req.Project, req.User)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateMember
	}

	added, err := s.users.GetByID(ctx, req.User)
	if err != nil {
		return nil, err
	}

	member := &ProjectMember{ProjectID: req.Project, UserID: req.User}
	if err := s.repo.AddMember(ctx, member); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateMember
		}
		return nil, err
	}

	manager, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.MemberAdded(ctx, added, p.ID, p.Name, manager.Name); err != nil {
		return nil, err
	}

	return member, nil
}

func (s *service) isVisible(ctx context.Context, caller user.Identity, p *Project) (bool, error) {
	switch caller.Role {
	case user.RoleManager:
		return p.ManagerID == caller.UserID, nil
	case user.RoleQA, user.RoleDeveloper:
		return s.repo.IsMember(ctx, p.ID, caller.UserID)
	}
	return false, nil
}
