package bug

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bugtracker-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrBugNotFound = errors.New("bug not found")

type Repository interface {
	Create(ctx context.Context, b *Bug) (*Bug, error)
	GetByID(ctx context.Context, id int64) (*Bug, error)
	Update(ctx context.Context, b *Bug) error
	Delete(ctx context.Context, id int64) error
	ListForManager(ctx context.Context, managerID int64) ([]Bug, error)
	ListForCreator(ctx context.Context, creatorID int64) ([]Bug, error)
	ListForAssignee(ctx context.Context, assigneeID int64) ([]Bug, error)
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

func (r *repository) Create(ctx context.Context, b *Bug) (*Bug, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(b).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "bugs", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Bug, error) {
	start := time.Now()
	b := new(Bug)
	err := r.db.NewSelect().
		Model(b).
		Relation("Assignee").
		Relation("Creator").
		Where("b.id = ?", id).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "bugs", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBugNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *repository) Update(ctx context.Context, b *Bug) error {
	start := time.Now()
	b.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().Model(b).WherePK().Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "bugs", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBugNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*Bug)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "bugs", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBugNotFound
	}
	return nil
}

func (r *repository) ListForManager(ctx context.Context, managerID int64) ([]Bug, error) {
	start := time.Now()
	var bugs []Bug
	err := r.db.NewSelect().
		Model(&bugs).
		Relation("Assignee").
		Relation("Creator").
		Join("JOIN projects AS p ON p.id = b.project_id").
		Where("p.manager_id = ?", managerID).
		Order("b.created_at DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "bugs", time.Since(start), err)

	return bugs, err
}

func (r *repository) ListForCreator(ctx context.Context, creatorID int64) ([]Bug, error) {
	start := time.Now()
	var bugs []Bug
	err := r.db.NewSelect().
		Model(&bugs).
		Relation("Assignee").
		Relation("Creator").
		Where("b.creator_id = ?", creatorID).
		Order("b.created_at DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "bugs", time.Since(start), err)

	return bugs, err
}

func (r *repository) ListForAssignee(ctx context.Context, assigneeID int64) ([]Bug, error) {
	start := time.Now()
	var bugs []Bug
	err := r.db.NewSelect().
		Model(&bugs).
		Relation("Assignee").
		Relation("Creator").
		Where("b.assignee_id = ?", assigneeID).
		Order("b.created_at DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "bugs", time.Since(start), err)

	return bugs, err
}
