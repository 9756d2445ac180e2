package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

var milestoneColumnNames = []string{"id", "project_id", "title", "description", "status", "due_date", "assigned_to", "priority", "category",
	"revision_count", "max_revisions", "sort_order", "status_note", "created_by", "created_at", "updated_at", "completed_at"}

func TestMilestoneUpdateWritesPatchInOneStatement(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	status := models.MilestoneCompleted
	rows := sqlmock.NewRows(milestoneColumnNames).
		AddRow("m1", "p1", "Design", "", "completed", nil, "", "medium", "", 0, 0, 1, "", "s1", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE milestones SET status = $1, completed_at = $2, updated_at = $3 WHERE id = $4 RETURNING")).
		WithArgs(string(status), now, now, "m1").
		WillReturnRows(rows)

	updated, err := repo.Update(context.Background(), "m1", models.MilestonePatch{Status: &status, CompletedAt: &now, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneCompleted, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneUpdateClearsColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	now := time.Now().UTC()
	status := models.MilestonePending
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE milestones SET status = $1, due_date = NULL, completed_at = NULL, updated_at = $2 WHERE id = $3")).
		WithArgs(string(status), now, "m1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), "m1", models.MilestonePatch{Status: &status, ClearDueDate: true, ClearCompletedAt: true, UpdatedAt: now})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneListByProject(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(milestoneColumnNames).
		AddRow("m1", "p1", "Design", "", "pending", now, "", "high", "", 0, 2, 1, "", "s1", now, now, nil).
		AddRow("m2", "p1", "Build", "", "in_progress", nil, "", "medium", "", 1, 2, 2, "", "s1", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM milestones WHERE project_id = $1 ORDER BY sort_order ASC")).
		WithArgs("p1").
		WillReturnRows(rows)

	milestones, err := repo.List(context.Background(), models.MilestoneFilter{ProjectID: "p1"})
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, 2, milestones[1].Order)
	assert.Nil(t, milestones[1].DueDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectExec("INSERT INTO milestones").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Milestone{ID: "m1", ProjectID: "p1", Title: "Design", Status: models.MilestonePending})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
