package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/projecthub-api/internal/models"
)

// NewFileRecord builds the pending record for a validated, categorized file.
// An empty projectID produces a user asset.
func NewFileRecord(desc models.FileDescriptor, category models.FileCategory, projectID string, actor *models.CurrentUser, now time.Time) *models.FileRecord {
	now = now.UTC()
	lastModified := desc.LastModified.UTC()
	if desc.LastModified.IsZero() {
		lastModified = now
	}

	record := &models.FileRecord{
		ID:           uuid.NewString(),
		Name:         displayName(desc.Name),
		OriginalName: desc.Name,
		SizeBytes:    desc.SizeBytes,
		MimeType:     normalizeMIME(desc.MimeType),
		Category:     category,
		UploadedAt:   now,
		LastModified: lastModified,
		Status:       models.FileStatusPending,
		Progress:     0,
		Tags:         pq.StringArray{},
	}
	if projectID = strings.TrimSpace(projectID); projectID != "" {
		record.ProjectID = &projectID
	}
	if actor != nil {
		record.UploadedBy = actor.ID
	}
	return record
}

// displayName strips any client supplied directory from a file name.
func displayName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	return name
}
