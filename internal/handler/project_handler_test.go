package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

type fakeProjectSrv struct {
	filter  models.ProjectFilter
	actor   *models.CurrentUser
	created models.CreateProjectRequest
	err     error
}

func (f *fakeProjectSrv) List(_ context.Context, filter models.ProjectFilter, actor *models.CurrentUser) ([]models.Project, *models.Pagination, error) {
	f.filter, f.actor = filter, actor
	return []models.Project{{ID: "p1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, f.err
}

func (f *fakeProjectSrv) Get(_ context.Context, id string, _ *models.CurrentUser) (*models.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Project{ID: id}, nil
}

func (f *fakeProjectSrv) Create(_ context.Context, req models.CreateProjectRequest, _ *models.CurrentUser) (*models.Project, error) {
	f.created = req
	return &models.Project{ID: "p1", Name: req.Name}, f.err
}

func (f *fakeProjectSrv) Update(_ context.Context, id string, _ models.UpdateProjectRequest, _ *models.CurrentUser) (*models.Project, error) {
	return &models.Project{ID: id}, f.err
}

func (f *fakeProjectSrv) Delete(context.Context, string, *models.CurrentUser) error { return f.err }

func TestProjectHandlerListParsesQuery(t *testing.T) {
	srv := &fakeProjectSrv{}
	h := NewProjectHandler(srv)
	c, rec := newFileContext(httptest.NewRequest(http.MethodGet, "/projects?status=active&search=site&page=2&page_size=5", nil))

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ProjectStatus("active"), srv.filter.Status)
	assert.Equal(t, "site", srv.filter.Search)
	assert.Equal(t, 2, srv.filter.Page)
	assert.Equal(t, 5, srv.filter.PageSize)
	assert.Equal(t, "staff-1", srv.actor.ID)
}

func TestProjectHandlerCreate(t *testing.T) {
	srv := &fakeProjectSrv{}
	h := NewProjectHandler(srv)
	c, rec := jsonContext(http.MethodPost, "/projects", `{"name":"Website relaunch"}`)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Website relaunch", srv.created.Name)
}

func TestProjectHandlerGetForbidden(t *testing.T) {
	h := NewProjectHandler(&fakeProjectSrv{err: appErrors.ErrForbidden})
	c, rec := newFileContext(httptest.NewRequest(http.MethodGet, "/projects/p2", nil))
	c.Params = gin.Params{{Key: "id", Value: "p2"}}

	h.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProjectHandlerDelete(t *testing.T) {
	h := NewProjectHandler(&fakeProjectSrv{})
	c, _ := newFileContext(httptest.NewRequest(http.MethodDelete, "/projects/p1", nil))
	c.Params = gin.Params{{Key: "id", Value: "p1"}}

	h.Delete(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}
