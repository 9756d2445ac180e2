package models

import "time"

// ProjectStatus describes where a project is in its lifecycle.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// Project groups milestones and files for one client engagement.
type Project struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	ClientID    *string       `db:"client_id" json:"clientId"`
	Status      ProjectStatus `db:"status" json:"status"`
	CreatedBy   string        `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	ClientID string
	Status   ProjectStatus
	Search   string
	Page     int
	PageSize int
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=4000"`
	ClientID    *string `json:"clientId" validate:"omitempty,uuid"`
}

// UpdateProjectRequest carries optional project changes.
type UpdateProjectRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=200"`
	Description *string        `json:"description" validate:"omitempty,max=4000"`
	ClientID    *string        `json:"clientId" validate:"omitempty,uuid"`
	Status      *ProjectStatus `json:"status" validate:"omitempty,oneof=active on_hold completed archived"`
}
