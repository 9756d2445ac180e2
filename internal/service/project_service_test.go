package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

type stubProjectStore struct {
	items      map[string]models.Project
	lastFilter models.ProjectFilter
	listErr    error
}

func (s *stubProjectStore) Create(ctx context.Context, p *models.Project) error {
	s.items[p.ID] = *p
	return nil
}

func (s *stubProjectStore) GetByID(ctx context.Context, id string) (*models.Project, error) {
	p, ok := s.items[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &p, nil
}

func (s *stubProjectStore) Update(ctx context.Context, p *models.Project) error {
	if _, ok := s.items[p.ID]; !ok {
		return appErrors.ErrNotFound
	}
	s.items[p.ID] = *p
	return nil
}

func (s *stubProjectStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.items[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *stubProjectStore) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	out := []models.Project{}
	for _, p := range s.items {
		if filter.ClientID != "" && (p.ClientID == nil || *p.ClientID != filter.ClientID) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func newProjectFixture() (*ProjectService, *stubProjectStore) {
	owner := clientActor.ID
	store := &stubProjectStore{items: map[string]models.Project{
		"p1": {ID: "p1", Name: "Website", ClientID: &owner, Status: models.ProjectActive},
		"p2": {ID: "p2", Name: "Internal", Status: models.ProjectActive},
	}}
	svc := NewProjectService(store, nil, nil)
	svc.now = func() time.Time { return milestoneNow }
	return svc, store
}

func TestProjectAccess(t *testing.T) {
	svc, _ := newProjectFixture()

	assert.NoError(t, svc.CheckAccess(context.Background(), "p1", clientActor))
	assert.True(t, appErrors.Is(svc.CheckAccess(context.Background(), "p2", clientActor), appErrors.ErrForbidden))
	assert.NoError(t, svc.CheckAccess(context.Background(), "p2", staffActor))
	assert.True(t, appErrors.Is(svc.CheckAccess(context.Background(), "nope", staffActor), appErrors.ErrNotFound))
	assert.True(t, appErrors.Is(svc.CheckAccess(context.Background(), "p1", nil), appErrors.ErrUnauthorized))
}

func TestProjectListScopesClients(t *testing.T) {
	svc, store := newProjectFixture()

	projects, pagination, err := svc.List(context.Background(), models.ProjectFilter{PageSize: 500}, clientActor)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, clientActor.ID, store.lastFilter.ClientID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	all, _, err := svc.List(context.Background(), models.ProjectFilter{}, staffActor)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	store.listErr = errors.New("db down")
	_, _, err = svc.List(context.Background(), models.ProjectFilter{}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestProjectCreateAndUpdate(t *testing.T) {
	svc, store := newProjectFixture()

	_, err := svc.Create(context.Background(), models.CreateProjectRequest{Name: "Brand"}, clientActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), models.CreateProjectRequest{Name: "  "}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	created, err := svc.Create(context.Background(), models.CreateProjectRequest{Name: " Brand ", Description: "logo work"}, staffActor)
	require.NoError(t, err)
	assert.Equal(t, "Brand", created.Name)
	assert.Equal(t, models.ProjectActive, created.Status)
	assert.Equal(t, staffActor.ID, created.CreatedBy)
	assert.Contains(t, store.items, created.ID)

	status := models.ProjectOnHold
	blank := ""
	updated, err := svc.Update(context.Background(), "p1", models.UpdateProjectRequest{Status: &status, Description: &blank}, staffActor)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectOnHold, updated.Status)
	assert.Equal(t, milestoneNow.UTC(), updated.UpdatedAt)
	require.NotNil(t, updated.ClientID)

	empty := "   "
	_, err = svc.Update(context.Background(), "p1", models.UpdateProjectRequest{Name: &empty}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.Update(context.Background(), "missing", models.UpdateProjectRequest{Status: &status}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestProjectDelete(t *testing.T) {
	svc, store := newProjectFixture()

	assert.True(t, appErrors.Is(svc.Delete(context.Background(), "p1", clientActor), appErrors.ErrForbidden))
	require.NoError(t, svc.Delete(context.Background(), "p1", staffActor))
	assert.NotContains(t, store.items, "p1")
	assert.True(t, appErrors.Is(svc.Delete(context.Background(), "p1", staffActor), appErrors.ErrNotFound))
}
