package memory

import (
	"context"
	"sync"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// MilestoneStore keeps milestones in memory. Each Update applies the whole
// patch under one lock, so concurrent writers resolve last-write-wins.
type MilestoneStore struct {
	mu    sync.RWMutex
	items map[string]models.Milestone
}

// NewMilestoneStore builds an empty store.
func NewMilestoneStore() *MilestoneStore {
	return &MilestoneStore{items: map[string]models.Milestone{}}
}

func (s *MilestoneStore) Create(_ context.Context, m *models.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[m.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "milestone already exists")
	}
	s.items[m.ID] = *m
	return nil
}

func (s *MilestoneStore) GetByID(_ context.Context, id string) (*models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return &m, nil
}

func (s *MilestoneStore) Update(_ context.Context, id string, patch models.MilestonePatch) (*models.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	patch.Apply(&m)
	s.items[id] = m
	return &m, nil
}

func (s *MilestoneStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// List returns unordered matches; callers sort for display.
func (s *MilestoneStore) List(_ context.Context, filter models.MilestoneFilter) ([]models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Milestone, 0)
	for _, m := range s.items {
		if filter.ProjectID != "" && m.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
