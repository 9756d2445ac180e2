package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/export"
)

// MilestoneStore is the persistence contract for milestones. Update applies
// the patch as a single last-write-wins write and returns the stored row.
type MilestoneStore interface {
	Create(ctx context.Context, milestone *models.Milestone) error
	GetByID(ctx context.Context, id string) (*models.Milestone, error)
	Update(ctx context.Context, id string, patch models.MilestonePatch) (*models.Milestone, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.MilestoneFilter) ([]models.Milestone, error)
}

type milestoneProjectReader interface {
	Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.Project, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportedFile is a rendered document ready to be sent to the client.
type ExportedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MilestoneServiceConfig tunes the workflow.
type MilestoneServiceConfig struct {
	EnforceTransitions bool
	UpcomingWindow     time.Duration
}

// MilestoneService owns the milestone status workflow and timeline reads.
type MilestoneService struct {
	repo      MilestoneStore
	projects  milestoneProjectReader
	validator *validator.Validate
	renderers map[string]datasetRenderer
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       MilestoneServiceConfig
	now       func() time.Time
}

// NewMilestoneService constructs the service with CSV and PDF exporters.
func NewMilestoneService(repo MilestoneStore, projects milestoneProjectReader, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg MilestoneServiceConfig) *MilestoneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.UpcomingWindow <= 0 {
		cfg.UpcomingWindow = 7 * 24 * time.Hour
	}
	return &MilestoneService{
		repo:      repo,
		projects:  projects,
		validator: validate,
		renderers: map[string]datasetRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Create adds a milestone to a project. Without an explicit order it is
// appended after the existing milestones.
func (s *MilestoneService) Create(ctx context.Context, projectID string, req models.CreateMilestoneRequest, actor *models.CurrentUser) (*models.Milestone, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid milestone payload")
	}
	if _, err := s.projects.Get(ctx, projectID, actor); err != nil {
		return nil, err
	}

	status := models.MilestonePending
	if req.Status != "" {
		parsed, err := models.ParseMilestoneStatus(req.Status)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		status = parsed
	}
	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.MilestonePriority(req.Priority)
	}

	order := 0
	if req.Order != nil {
		order = *req.Order
	} else {
		existing, err := s.repo.List(ctx, models.MilestoneFilter{ProjectID: projectID})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list milestones")
		}
		for _, m := range existing {
			if m.Order > order {
				order = m.Order
			}
		}
		order++
	}

	now := s.now().UTC()
	milestone := &models.Milestone{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		Title:        req.Title,
		Description:  strings.TrimSpace(req.Description),
		Status:       status,
		DueDate:      req.DueDate,
		AssignedTo:   strings.TrimSpace(req.AssignedTo),
		Priority:     priority,
		Category:     strings.TrimSpace(req.Category),
		MaxRevisions: req.MaxRevisions,
		Order:        order,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if status == models.MilestoneCompleted {
		milestone.CompletedAt = &now
	}
	if err := s.repo.Create(ctx, milestone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create milestone")
	}
	return milestone, nil
}

// Get returns a milestone of a project actor may see.
func (s *MilestoneService) Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.MilestoneView, error) {
	milestone, err := s.fetchVisible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return &models.MilestoneView{Milestone: *milestone, Overdue: milestone.IsOverdue(s.now())}, nil
}

// List returns a project's milestones ordered for display.
func (s *MilestoneService) List(ctx context.Context, projectID string, actor *models.CurrentUser) ([]models.MilestoneView, error) {
	milestones, err := s.listVisible(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	return s.views(milestones), nil
}

// Update edits descriptive fields. Status changes go through UpdateStatus.
func (s *MilestoneService) Update(ctx context.Context, id string, req models.UpdateMilestoneRequest, actor *models.CurrentUser) (*models.Milestone, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid milestone payload")
	}
	if _, err := s.fetchVisible(ctx, id, actor); err != nil {
		return nil, err
	}

	patch := models.MilestonePatch{
		Description:  trimmedPtr(req.Description),
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		AssignedTo:   trimmedPtr(req.AssignedTo),
		Category:     trimmedPtr(req.Category),
		MaxRevisions: req.MaxRevisions,
		Order:        req.Order,
		UpdatedAt:    s.now().UTC(),
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "milestone title cannot be empty")
		}
		patch.Title = &title
	}
	if req.Priority != nil {
		priority := models.MilestonePriority(*req.Priority)
		patch.Priority = &priority
	}
	return s.write(ctx, id, patch)
}

// UpdateStatus moves a milestone to status. It always stamps UpdatedAt, sets
// CompletedAt when completing and clears it on any other status, and counts
// every entry into revision_requested. Staff may set any status; clients may
// only approve or request a revision on their own projects.
func (s *MilestoneService) UpdateStatus(ctx context.Context, id, status, note string, actor *models.CurrentUser) (*models.Milestone, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	next, err := models.ParseMilestoneStatus(status)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !actor.Role.IsStaff() && next != models.MilestoneCompleted && next != models.MilestoneRevisionRequested {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "clients may only approve or request revisions")
	}

	current, err := s.fetchVisible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if s.cfg.EnforceTransitions {
		if !models.CanTransition(current.Status, next) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move milestone from %s to %s", current.Status, next))
		}
		if next == models.MilestoneRevisionRequested && current.Status != next &&
			current.MaxRevisions > 0 && current.RevisionCount >= current.MaxRevisions {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "revision limit reached")
		}
	}

	now := s.now().UTC()
	patch := models.MilestonePatch{Status: &next, UpdatedAt: now}
	if note = strings.TrimSpace(note); note != "" {
		patch.StatusNote = &note
	}
	switch {
	case next == models.MilestoneCompleted && current.CompletedAt == nil:
		patch.CompletedAt = &now
	case next != models.MilestoneCompleted:
		patch.ClearCompletedAt = true
	}
	if next == models.MilestoneRevisionRequested && current.Status != models.MilestoneRevisionRequested {
		revisions := current.RevisionCount + 1
		patch.RevisionCount = &revisions
	}

	updated, err := s.write(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.metrics.MilestoneStatusChanged(next)
	s.logger.Info("milestone status updated",
		zap.String("milestone_id", id), zap.String("from", string(current.Status)), zap.String("to", string(next)), zap.String("actor_id", actor.ID))
	return updated, nil
}

// Delete removes a milestone.
func (s *MilestoneService) Delete(ctx context.Context, id string, actor *models.CurrentUser) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if _, err := s.fetchVisible(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.storeError(err, "failed to delete milestone")
	}
	return nil
}

// Reorder assigns display order 1..n following ids. Every id must belong to the project.
func (s *MilestoneService) Reorder(ctx context.Context, projectID string, ids []string, actor *models.CurrentUser) ([]models.MilestoneView, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	milestones, err := s.listVisible(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(milestones))
	for _, m := range milestones {
		known[m.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "milestone "+id+" does not belong to the project")
		}
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "milestone "+id+" listed twice")
		}
		seen[id] = struct{}{}
	}

	now := s.now().UTC()
	for i, id := range ids {
		order := i + 1
		if _, err := s.write(ctx, id, models.MilestonePatch{Order: &order, UpdatedAt: now}); err != nil {
			return nil, err
		}
	}
	return s.List(ctx, projectID, actor)
}

// Timeline returns a project's milestones with their read-time aggregate.
func (s *MilestoneService) Timeline(ctx context.Context, projectID string, actor *models.CurrentUser) (*models.Timeline, error) {
	milestones, err := s.listVisible(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	return &models.Timeline{
		ProjectID:  projectID,
		Milestones: s.views(milestones),
		Stats:      ComputeTimeline(milestones, s.now(), s.cfg.UpcomingWindow),
	}, nil
}

// ExportTimeline renders the timeline as csv or pdf.
func (s *MilestoneService) ExportTimeline(ctx context.Context, projectID, format string, actor *models.CurrentUser) (*ExportedFile, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}
	project, err := s.projects.Get(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}
	timeline, err := s.Timeline(ctx, projectID, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title: project.Name + " timeline",
		Summary: []string{
			fmt.Sprintf("Milestones: %d, completed: %d, overdue: %d, upcoming: %d",
				timeline.Stats.TotalMilestones, timeline.Stats.CompletedMilestones,
				timeline.Stats.OverdueMilestones, timeline.Stats.UpcomingMilestones),
			fmt.Sprintf("Completion rate: %d%%", timeline.Stats.CompletionRate),
		},
		Headers: []string{"Order", "Title", "Status", "Priority", "Assigned To", "Due Date", "Completed At", "Revisions", "Overdue"},
	}
	for _, m := range timeline.Milestones {
		dataset.Rows = append(dataset.Rows, []string{
			strconv.Itoa(m.Order),
			m.Title,
			string(m.Status),
			string(m.Priority),
			m.AssignedTo,
			formatDate(m.DueDate),
			formatDate(m.CompletedAt),
			fmt.Sprintf("%d/%d", m.RevisionCount, m.MaxRevisions),
			strconv.FormatBool(m.Overdue),
		})
	}

	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timeline")
	}
	return &ExportedFile{
		Filename:    "timeline-" + projectID + "." + renderer.Extension(),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

// ComputeTimeline aggregates milestones at now. Upcoming milestones are open
// and due within window; overdue ones are open and past due. The completion
// rate is a rounded percentage and 0 for an empty list.
func ComputeTimeline(milestones []models.Milestone, now time.Time, window time.Duration) models.TimelineStats {
	stats := models.TimelineStats{TotalMilestones: len(milestones)}
	horizon := now.Add(window)
	for _, m := range milestones {
		if m.Status == models.MilestoneCompleted {
			stats.CompletedMilestones++
			continue
		}
		if m.DueDate == nil {
			continue
		}
		switch {
		case m.DueDate.Before(now):
			stats.OverdueMilestones++
		case !m.DueDate.After(horizon):
			stats.UpcomingMilestones++
		}
	}
	if stats.TotalMilestones > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.CompletedMilestones) / float64(stats.TotalMilestones) * 100))
	}
	return stats
}

// SortMilestones orders by display order, then due date (undated last), then creation.
func SortMilestones(milestones []models.Milestone) {
	sort.SliceStable(milestones, func(i, j int) bool {
		a, b := milestones[i], milestones[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		switch {
		case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (s *MilestoneService) listVisible(ctx context.Context, projectID string, actor *models.CurrentUser) ([]models.Milestone, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.projects.Get(ctx, projectID, actor); err != nil {
		return nil, err
	}
	milestones, err := s.repo.List(ctx, models.MilestoneFilter{ProjectID: projectID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list milestones")
	}
	SortMilestones(milestones)
	return milestones, nil
}

func (s *MilestoneService) fetchVisible(ctx context.Context, id string, actor *models.CurrentUser) (*models.Milestone, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "milestone id is required")
	}
	milestone, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load milestone")
	}
	if _, err := s.projects.Get(ctx, milestone.ProjectID, actor); err != nil {
		return nil, err
	}
	return milestone, nil
}

func (s *MilestoneService) write(ctx context.Context, id string, patch models.MilestonePatch) (*models.Milestone, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, s.storeError(err, "failed to update milestone")
	}
	return updated, nil
}

func (s *MilestoneService) views(milestones []models.Milestone) []models.MilestoneView {
	now := s.now()
	views := make([]models.MilestoneView, 0, len(milestones))
	for _, m := range milestones {
		views = append(views, models.MilestoneView{Milestone: m, Overdue: m.IsOverdue(now)})
	}
	return views
}

func (s *MilestoneService) storeError(err error, msg string) error {
	if appErrors.Is(err, appErrors.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, "milestone not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
