package models

import (
	"fmt"
	"strings"
	"time"
)

// MilestoneStatus is the stored workflow state of a milestone. Overdue is
// never stored; it is derived from DueDate at read time.
type MilestoneStatus string

const (
	MilestonePending           MilestoneStatus = "pending"
	MilestoneInProgress        MilestoneStatus = "in_progress"
	MilestoneInReview          MilestoneStatus = "in_review"
	MilestoneRevisionRequested MilestoneStatus = "revision_requested"
	MilestoneCompleted         MilestoneStatus = "completed"
)

// ParseMilestoneStatus maps raw input onto the canonical vocabulary. Hyphenated
// spellings such as "in-progress" are accepted; "overdue" is rejected because it
// is a derived classification.
func ParseMilestoneStatus(raw string) (MilestoneStatus, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	switch status := MilestoneStatus(normalized); status {
	case MilestonePending, MilestoneInProgress, MilestoneInReview, MilestoneRevisionRequested, MilestoneCompleted:
		return status, nil
	case "overdue":
		return "", fmt.Errorf("overdue is derived from the due date and cannot be set")
	default:
		return "", fmt.Errorf("unknown milestone status %q", raw)
	}
}

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestonePending:           {MilestoneInProgress},
	MilestoneInProgress:        {MilestoneInReview},
	MilestoneInReview:          {MilestoneRevisionRequested},
	MilestoneRevisionRequested: {MilestoneInProgress},
}

// CanTransition reports whether the workflow table allows from → to. Moving to
// completed is always allowed, and so is re-applying the current status.
func CanTransition(from, to MilestoneStatus) bool {
	if from == to || to == MilestoneCompleted {
		return true
	}
	for _, next := range milestoneTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MilestonePriority ranks milestones for display.
type MilestonePriority string

const (
	PriorityLow    MilestonePriority = "low"
	PriorityMedium MilestonePriority = "medium"
	PriorityHigh   MilestonePriority = "high"
	PriorityUrgent MilestonePriority = "urgent"
)

// Milestone is a trackable checkpoint of a project. CompletedAt is non-nil
// exactly when Status is completed.
type Milestone struct {
	ID            string            `db:"id" json:"id"`
	ProjectID     string            `db:"project_id" json:"projectId"`
	Title         string            `db:"title" json:"title"`
	Description   string            `db:"description" json:"description"`
	Status        MilestoneStatus   `db:"status" json:"status"`
	DueDate       *time.Time        `db:"due_date" json:"dueDate"`
	AssignedTo    string            `db:"assigned_to" json:"assignedTo"`
	Priority      MilestonePriority `db:"priority" json:"priority"`
	Category      string            `db:"category" json:"category"`
	RevisionCount int               `db:"revision_count" json:"revisionCount"`
	MaxRevisions  int               `db:"max_revisions" json:"maxRevisions"`
	Order         int               `db:"sort_order" json:"order"`
	StatusNote    string            `db:"status_note" json:"statusNote,omitempty"`
	CreatedBy     string            `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
	CompletedAt   *time.Time        `db:"completed_at" json:"completedAt"`
}

// IsOverdue reports whether the milestone is past due and still open.
func (m Milestone) IsOverdue(now time.Time) bool {
	return m.DueDate != nil && m.DueDate.Before(now) && m.Status != MilestoneCompleted
}

// MilestoneView decorates a milestone with read-time classifications.
type MilestoneView struct {
	Milestone
	Overdue bool `json:"overdue"`
}

// MilestonePatch lists the columns an update writes. Nil fields are left untouched.
type MilestonePatch struct {
	Title            *string
	Description      *string
	Status           *MilestoneStatus
	DueDate          *time.Time
	ClearDueDate     bool
	AssignedTo       *string
	Priority         *MilestonePriority
	Category         *string
	RevisionCount    *int
	MaxRevisions     *int
	Order            *int
	StatusNote       *string
	CompletedAt      *time.Time
	ClearCompletedAt bool
	UpdatedAt        time.Time
}

// Apply writes the patch onto m in place.
func (p MilestonePatch) Apply(m *Milestone) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.ClearDueDate {
		m.DueDate = nil
	} else if p.DueDate != nil {
		due := *p.DueDate
		m.DueDate = &due
	}
	if p.AssignedTo != nil {
		m.AssignedTo = *p.AssignedTo
	}
	if p.Priority != nil {
		m.Priority = *p.Priority
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.RevisionCount != nil {
		m.RevisionCount = *p.RevisionCount
	}
	if p.MaxRevisions != nil {
		m.MaxRevisions = *p.MaxRevisions
	}
	if p.Order != nil {
		m.Order = *p.Order
	}
	if p.StatusNote != nil {
		m.StatusNote = *p.StatusNote
	}
	if p.ClearCompletedAt {
		m.CompletedAt = nil
	} else if p.CompletedAt != nil {
		completed := *p.CompletedAt
		m.CompletedAt = &completed
	}
	if !p.UpdatedAt.IsZero() {
		m.UpdatedAt = p.UpdatedAt
	}
}

// MilestoneFilter narrows milestone queries.
type MilestoneFilter struct {
	ProjectID string
	Status    MilestoneStatus
}

// TimelineStats is the read-time aggregate over a project's milestones.
type TimelineStats struct {
	TotalMilestones     int `json:"totalMilestones"`
	CompletedMilestones int `json:"completedMilestones"`
	OverdueMilestones   int `json:"overdueMilestones"`
	UpcomingMilestones  int `json:"upcomingMilestones"`
	CompletionRate      int `json:"completionRate"`
}

// Timeline is a project's ordered milestones plus their aggregate.
type Timeline struct {
	ProjectID  string          `json:"projectId"`
	Milestones []MilestoneView `json:"milestones"`
	Stats      TimelineStats   `json:"stats"`
}

// CreateMilestoneRequest is the payload for adding a milestone.
type CreateMilestoneRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=4000"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"dueDate"`
	AssignedTo   string     `json:"assignedTo" validate:"max=200"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category     string     `json:"category" validate:"max=100"`
	MaxRevisions int        `json:"maxRevisions" validate:"gte=0"`
	Order        *int       `json:"order"`
}

// UpdateMilestoneRequest carries optional milestone edits. Status changes go
// through the status endpoint.
type UpdateMilestoneRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=4000"`
	DueDate      *time.Time `json:"dueDate"`
	ClearDueDate bool       `json:"clearDueDate"`
	AssignedTo   *string    `json:"assignedTo" validate:"omitempty,max=200"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category     *string    `json:"category" validate:"omitempty,max=100"`
	MaxRevisions *int       `json:"maxRevisions" validate:"omitempty,gte=0"`
	Order        *int       `json:"order"`
}

// UpdateMilestoneStatusRequest is the payload for a status write.
type UpdateMilestoneStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=2000"`
}

// ReorderMilestonesRequest lists milestone ids in their new display order.
type ReorderMilestonesRequest struct {
	MilestoneIDs []string `json:"milestoneIds" validate:"required,min=1,dive,required"`
}
