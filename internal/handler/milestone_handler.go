package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/projecthub-api/internal/models"
	"github.com/noah-isme/projecthub-api/internal/service"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/response"
)

type milestoneService interface {
	Create(ctx context.Context, projectID string, req models.CreateMilestoneRequest, actor *models.CurrentUser) (*models.Milestone, error)
	Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.MilestoneView, error)
	List(ctx context.Context, projectID string, actor *models.CurrentUser) ([]models.MilestoneView, error)
	Update(ctx context.Context, id string, req models.UpdateMilestoneRequest, actor *models.CurrentUser) (*models.Milestone, error)
	UpdateStatus(ctx context.Context, id, status, note string, actor *models.CurrentUser) (*models.Milestone, error)
	Delete(ctx context.Context, id string, actor *models.CurrentUser) error
	Reorder(ctx context.Context, projectID string, ids []string, actor *models.CurrentUser) ([]models.MilestoneView, error)
	Timeline(ctx context.Context, projectID string, actor *models.CurrentUser) (*models.Timeline, error)
	ExportTimeline(ctx context.Context, projectID, format string, actor *models.CurrentUser) (*service.ExportedFile, error)
}

// MilestoneHandler exposes milestone and timeline endpoints.
type MilestoneHandler struct {
	service milestoneService
}

// NewMilestoneHandler constructs the handler.
func NewMilestoneHandler(svc milestoneService) *MilestoneHandler {
	return &MilestoneHandler{service: svc}
}

// List godoc
// @Summary List project milestones
// @Tags Milestones
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/milestones [get]
func (h *MilestoneHandler) List(c *gin.Context) {
	milestones, err := h.service.List(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestones, nil)
}

// Create godoc
// @Summary Add a milestone to a project
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body models.CreateMilestoneRequest true "Milestone payload"
// @Success 201 {object} response.Envelope
// @Router /projects/{id}/milestones [post]
func (h *MilestoneHandler) Create(c *gin.Context) {
	var req models.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid milestone payload"))
		return
	}
	milestone, err := h.service.Create(c.Request.Context(), c.Param("id"), req, currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, milestone)
}

// Reorder godoc
// @Summary Reorder project milestones
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body models.ReorderMilestonesRequest true "Ordered milestone ids"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/milestones/order [put]
func (h *MilestoneHandler) Reorder(c *gin.Context) {
	var req models.ReorderMilestonesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.MilestoneIDs) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "milestoneIds is required"))
		return
	}
	milestones, err := h.service.Reorder(c.Request.Context(), c.Param("id"), req.MilestoneIDs, currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestones, nil)
}

// Timeline godoc
// @Summary Project timeline with completion statistics
// @Tags Milestones
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/timeline [get]
func (h *MilestoneHandler) Timeline(c *gin.Context) {
	timeline, err := h.service.Timeline(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timeline, nil)
}

// ExportTimeline godoc
// @Summary Download the project timeline
// @Tags Milestones
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /projects/{id}/timeline/export [get]
func (h *MilestoneHandler) ExportTimeline(c *gin.Context) {
	file, err := h.service.ExportTimeline(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Get godoc
// @Summary Get milestone
// @Tags Milestones
// @Produce json
// @Param id path string true "Milestone ID"
// @Success 200 {object} response.Envelope
// @Router /milestones/{id} [get]
func (h *MilestoneHandler) Get(c *gin.Context) {
	milestone, err := h.service.Get(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestone, nil)
}

// Update godoc
// @Summary Edit milestone details
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param payload body models.UpdateMilestoneRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /milestones/{id} [put]
func (h *MilestoneHandler) Update(c *gin.Context) {
	var req models.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid milestone payload"))
		return
	}
	milestone, err := h.service.Update(c.Request.Context(), c.Param("id"), req, currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestone, nil)
}

// UpdateStatus godoc
// @Summary Change milestone status
// @Tags Milestones
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param payload body models.UpdateMilestoneStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /milestones/{id}/status [patch]
func (h *MilestoneHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateMilestoneStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	milestone, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes, currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, milestone, nil)
}

// Delete godoc
// @Summary Delete milestone
// @Tags Milestones
// @Param id path string true "Milestone ID"
// @Success 204
// @Router /milestones/{id} [delete]
func (h *MilestoneHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
