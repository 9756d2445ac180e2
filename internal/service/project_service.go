package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// ProjectStore is the persistence contract for projects.
type ProjectStore interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
}

// ProjectService manages projects and answers access questions for them.
type ProjectService struct {
	repo      ProjectStore
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewProjectService constructs the service.
func NewProjectService(repo ProjectStore, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProjectService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// CheckAccess allows staff everywhere and clients only on their own projects.
func (s *ProjectService) CheckAccess(ctx context.Context, projectID string, actor *models.CurrentUser) error {
	_, err := s.Get(ctx, projectID, actor)
	return err
}

// List returns a page of projects visible to actor.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter, actor *models.CurrentUser) ([]models.Project, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		filter.ClientID = actor.ID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a project when actor may see it.
func (s *ProjectService) Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.Project, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	project, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsStaff() {
		return project, nil
	}
	if project.ClientID == nil || *project.ClientID != actor.ID {
		return nil, appErrors.ErrForbidden
	}
	return project, nil
}

// Create registers a new active project.
func (s *ProjectService) Create(ctx context.Context, req models.CreateProjectRequest, actor *models.CurrentUser) (*models.Project, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	now := s.now().UTC()
	project := &models.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		ClientID:    emptyToNil(req.ClientID),
		Status:      models.ProjectActive,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	s.logger.Info("project created", zap.String("project_id", project.ID), zap.String("actor_id", actor.ID))
	return project, nil
}

// Update applies the non-nil fields of req.
func (s *ProjectService) Update(ctx context.Context, id string, req models.UpdateProjectRequest, actor *models.CurrentUser) (*models.Project, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid project payload")
	}
	project, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "project name cannot be empty")
		}
		project.Name = name
	}
	if req.Description != nil {
		project.Description = strings.TrimSpace(*req.Description)
	}
	if req.ClientID != nil {
		project.ClientID = emptyToNil(req.ClientID)
	}
	if req.Status != nil {
		project.Status = *req.Status
	}
	project.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, s.storeError(err, "failed to update project")
	}
	return project, nil
}

// Delete removes a project. Its files and milestones are left in place.
func (s *ProjectService) Delete(ctx context.Context, id string, actor *models.CurrentUser) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete project")
	}
	s.logger.Info("project deleted", zap.String("project_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *ProjectService) fetch(ctx context.Context, id string) (*models.Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project id is required")
	}
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load project")
	}
	return project, nil
}

func (s *ProjectService) storeError(err error, msg string) error {
	if appErrors.Is(err, appErrors.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "project not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}

func requireStaff(actor *models.CurrentUser) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.IsStaff() {
		return appErrors.ErrForbidden
	}
	return nil
}

func emptyToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
