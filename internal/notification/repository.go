package notification

import (
	"context"
	"errors"
	"time"

	"bugtracker-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrNotificationNotFound = errors.New("notification not found")

type Repository interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	ListForUser(ctx context.Context, userID int64) ([]Notification, error)
	// MarkRead flips is_read on the caller's own notification. The lookup is
	// scoped to the owner, so a cross-user id behaves exactly like a missing
	// one: ErrNotificationNotFound.
	MarkRead(ctx context.Context, userID, id int64) error
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, n *Notification) (*Notification, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(n).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "notifications", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64) ([]Notification, error) {
	start := time.Now()
	var notifications []Notification
	err := r.db.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "notifications", time.Since(start), err)

	return notifications, err
}

func (r *repository) MarkRead(ctx context.Context, userID, id int64) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Notification)(nil)).
		Set("is_read = TRUE").
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "notifications", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().
		Model((*Notification)(nil)).
		Where("user_id = ?", userID).
		Where("is_read = FALSE").
		Count(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "notifications", time.Since(start), err)

	return count, err
}
