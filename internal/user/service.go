package user

import (
	"context"
	"strings"
)

// ProfileNotifier is satisfied by the notification dispatcher. Declared here
// so the user service does not depend on the notification package.
type ProfileNotifier interface {
	ProfileUpdated(ctx context.Context, recipient *User) error
}

type Service interface {
	GetAllUsers(ctx context.Context) ([]User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	UpdateProfile(ctx context.Context, id int64, req UpdateProfileRequest) (*User, error)
}

type service struct {
	repo     Repository
	notifier ProfileNotifier
	mediaURL string
}

func NewService(repo Repository, notifier ProfileNotifier, mediaBaseURL string) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
		mediaURL: strings.TrimSuffix(mediaBaseURL, "/"),
	}
}

func (s *service) GetAllUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		s.resolvePictureURL(&users[i])
	}
	return users, nil
}

func (s *service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolvePictureURL(u)
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, id int64, req UpdateProfileRequest) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.MobileNumber != nil {
		u.MobileNumber = *req.MobileNumber
	}
	if req.ProfilePicture != nil {
		u.ProfilePicture = *req.ProfilePicture
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.ProfileUpdated(ctx, u); err != nil {
			return nil, err
		}
	}

	s.resolvePictureURL(u)
	return u, nil
}

func (s *service) resolvePictureURL(u *User) {
	if u.ProfilePicture == "" {
		return
	}
	u.ProfilePictureURL = s.mediaURL + "/media/" + u.ProfilePicture
}
