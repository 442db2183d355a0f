package notification

import (
	"context"
	"fmt"
	"log/slog"

	"bugtracker-service/internal/mailer"
	"bugtracker-service/internal/messaging"
	"bugtracker-service/internal/user"
)

// Dispatcher creates in-app notification rows and triggers the outbound side
// effects. The row write and the email are independent steps: a failed row
// write fails the triggering request, and a failed email send also propagates
// (fail loudly). The NATS event is best effort and never fails the request.
type Dispatcher struct {
	repo     Repository
	mailer   mailer.Mailer
	producer *messaging.Producer // nil when NATS is not configured
	logger   *slog.Logger
}

func NewDispatcher(repo Repository, m mailer.Mailer, producer *messaging.Producer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		mailer:   m,
		producer: producer,
		logger:   logger,
	}
}

// ProjectCreated notifies the creator of their own new project. In-app only.
func (d *Dispatcher) ProjectCreated(ctx context.Context, recipient *user.User, projectID int64, projectName string) error {
	return d.create(ctx, &Notification{
		UserID:      recipient.ID,
		Type:        TypeProjectAddition,
		Title:       "New Project Created",
		Message:     fmt.Sprintf("You have successfully created project %q", projectName),
		RelatedLink: fmt.Sprintf("/projects/%d", projectID),
	})
}

// MemberAdded notifies a user added to a project, in-app and by email.
func (d *Dispatcher) MemberAdded(ctx context.Context, recipient *user.User, projectID int64, projectName, managerName string) error {
	err := d.create(ctx, &Notification{
		UserID:      recipient.ID,
		Type:        TypeProjectAddition,
		Title:       "Added to New Project",
		Message:     fmt.Sprintf("You have been added to project %q", projectName),
		RelatedLink: fmt.Sprintf("/projects/%d", projectID),
	})
	if err != nil {
		return err
	}

	return d.mailer.Send(ctx, recipient.Email,
		"You are added to a New Project",
		fmt.Sprintf("You have been added to project %q by Manager %q", projectName, managerName),
	)
}

// BugAssigned notifies the assignee of a bug, in-app and by email.
func (d *Dispatcher) BugAssigned(ctx context.Context, recipient *user.User, projectID int64, bugTitle, assignerName string) error {
	err := d.create(ctx, &Notification{
		UserID:      recipient.ID,
		Type:        TypeBugAssignment,
		Title:       "New Bug Assigned",
		Message:     fmt.Sprintf("You have been assigned a new bug: %s", bugTitle),
		RelatedLink: fmt.Sprintf("/projects/%d", projectID),
	})
	if err != nil {
		return err
	}

	return d.mailer.Send(ctx, recipient.Email,
		"New Bug Assigned",
		fmt.Sprintf("You have been assigned a new bug: %s by QA %q", bugTitle, assignerName),
	)
}

// ProfileUpdated records a profile-change notification. In-app only.
func (d *Dispatcher) ProfileUpdated(ctx context.Context, recipient *user.User) error {
	return d.create(ctx, &Notification{
		UserID:  recipient.ID,
		Type:    TypeProfileUpdate,
		Title:   "Profile Updated",
		Message: "Your profile has been updated",
	})
}

func (d *Dispatcher) create(ctx context.Context, n *Notification) error {
	created, err := d.repo.Create(ctx, n)
	if err != nil {
		return err
	}

	if d.producer != nil {
		if err := d.producer.SendMessage(created); err != nil {
			d.logger.Warn("failed to publish notification event", "error", err)
		}
	}
	return nil
}
