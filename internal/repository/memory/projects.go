package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// ProjectStore keeps projects in memory.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]models.Project
}

// NewProjectStore builds an empty store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: map[string]models.Project{}}
}

func (s *ProjectStore) Create(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[project.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "project already exists")
	}
	s.projects[project.ID] = *project
	return nil
}

func (s *ProjectStore) GetByID(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &p, nil
}

func (s *ProjectStore) Update(_ context.Context, project *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[project.ID]; !ok {
		return appErrors.ErrNotFound
	}
	s.projects[project.ID] = *project
	return nil
}

func (s *ProjectStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

// List filters, orders newest first and pages the projects.
func (s *ProjectStore) List(_ context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	s.mu.RLock()
	matched := make([]models.Project, 0, len(s.projects))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, p := range s.projects {
		if filter.ClientID != "" && (p.ClientID == nil || *p.ClientID != filter.ClientID) {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []models.Project{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
