package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

func TestProjectListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "client_id", "status", "created_by", "created_at", "updated_at"}).
		AddRow("p1", "Website", "", "c1", "active", "s1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE 1=1 AND client_id = $1 AND LOWER(name) LIKE $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("c1", "%web%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM projects WHERE 1=1 AND client_id = $1 AND LOWER(name) LIKE $2")).
		WithArgs("c1", "%web%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	projects, total, err := repo.List(context.Background(), models.ProjectFilter{ClientID: "c1", Search: " Web ", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.NotNil(t, projects[0].ClientID)
	assert.Equal(t, "c1", *projects[0].ClientID)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec("UPDATE projects SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Project{ID: "nope", Name: "x"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM projects WHERE id = $1")).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
