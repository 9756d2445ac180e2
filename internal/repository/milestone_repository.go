package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

const milestoneColumns = `id, project_id, title, description, status, due_date, assigned_to, priority, category,
revision_count, max_revisions, sort_order, status_note, created_by, created_at, updated_at, completed_at`

// MilestoneRepository persists milestones in Postgres.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository constructs the repository.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Create inserts a milestone.
func (r *MilestoneRepository) Create(ctx context.Context, m *models.Milestone) error {
	const query = `INSERT INTO milestones (` + milestoneColumns + `)
VALUES (:id, :project_id, :title, :description, :status, :due_date, :assigned_to, :priority, :category,
:revision_count, :max_revisions, :sort_order, :status_note, :created_by, :created_at, :updated_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("create milestone: %w", err)
	}
	return nil
}

// GetByID loads one milestone.
func (r *MilestoneRepository) GetByID(ctx context.Context, id string) (*models.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	var m models.Milestone
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get milestone: %w", err)
	}
	return &m, nil
}

// Update writes the set fields of patch in one statement and returns the stored row.
func (r *MilestoneRepository) Update(ctx context.Context, id string, patch models.MilestonePatch) (*models.Milestone, error) {
	sets, args := milestoneAssignments(patch)
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE milestones SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), milestoneColumns)

	var m models.Milestone
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("update milestone: %w", err)
	}
	return &m, nil
}

// Delete removes a milestone.
func (r *MilestoneRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	return requireAffected(res, "delete milestone")
}

// List returns milestones matching filter in display order.
func (r *MilestoneRepository) List(ctx context.Context, filter models.MilestoneFilter) ([]models.Milestone, error) {
	var conditions []string
	var args []interface{}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + milestoneColumns + " FROM milestones"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sort_order ASC, due_date ASC NULLS LAST, created_at ASC"

	milestones := []models.Milestone{}
	if err := r.db.SelectContext(ctx, &milestones, query, args...); err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return milestones, nil
}

func milestoneAssignments(p models.MilestonePatch) ([]string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if p.DueDate != nil {
		add("due_date", *p.DueDate)
	}
	if p.AssignedTo != nil {
		add("assigned_to", *p.AssignedTo)
	}
	if p.Priority != nil {
		add("priority", *p.Priority)
	}
	if p.Category != nil {
		add("category", *p.Category)
	}
	if p.RevisionCount != nil {
		add("revision_count", *p.RevisionCount)
	}
	if p.MaxRevisions != nil {
		add("max_revisions", *p.MaxRevisions)
	}
	if p.Order != nil {
		add("sort_order", *p.Order)
	}
	if p.StatusNote != nil {
		add("status_note", *p.StatusNote)
	}
	if p.ClearCompletedAt {
		sets = append(sets, "completed_at = NULL")
	} else if p.CompletedAt != nil {
		add("completed_at", *p.CompletedAt)
	}
	if !p.UpdatedAt.IsZero() {
		add("updated_at", p.UpdatedAt)
	}
	return sets, args
}
