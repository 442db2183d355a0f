package project

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bugtracker-service/internal/metrics"

	"github.com/uptrace/bun"
)

var ErrProjectNotFound = errors.New("project not found")

type Repository interface {
	Create(ctx context.Context, p *Project) (*Project, error)
	GetByID(ctx context.Context, id int64) (*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id int64) error
	ListForManager(ctx context.Context, managerID int64) ([]Project, error)
	ListForMember(ctx context.Context, userID int64) ([]Project, error)
	AddMember(ctx context.Context, m *ProjectMember) error
	IsMember(ctx context.Context, projectID, userID int64) (bool, error)
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

func (r *repository) Create(ctx context.Context, p *Project) (*Project, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(p).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "projects", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Project, error) {
	start := time.Now()
	p := new(Project)
	err := r.db.NewSelect().
		Model(p).
		Relation("Manager").
		Where("p.id = ?", id).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "projects", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, p *Project) error {
	start := time.Now()
	p.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().Model(p).WherePK().Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "projects", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*Project)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "projects", time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *repository) ListForManager(ctx context.Context, managerID int64) ([]Project, error) {
	start := time.Now()
	var projects []Project
	err := r.db.NewSelect().
		Model(&projects).
		Where("manager_id = ?", managerID).
		Order("created_at DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "projects", time.Since(start), err)

	return projects, err
}

func (r *repository) ListForMember(ctx context.Context, userID int64) ([]Project, error) {
	start := time.Now()
	var projects []Project
	err := r.db.NewSelect().
		Model(&projects).
		Join("JOIN project_members AS pm ON pm.project_id = p.id").
		Where("pm.user_id = ?", userID).
		Order("p.created_at DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "projects", time.Since(start), err)

	return projects, err
}

func (r *repository) AddMember(ctx context.Context, m *ProjectMember) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(m).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "project_members", time.Since(start), err)

	return err
}

func (r *repository) IsMember(ctx context.Context, projectID, userID int64) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*ProjectMember)(nil)).
		Where("project_id = ?", projectID).
		Where("user_id = ?", userID).
		Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "project_members", time.Since(start), err)

	return exists, err
}
