package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
)

func TestNewFileRecord(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	modified := now.Add(-48 * time.Hour)
	actor := &models.CurrentUser{ID: "user-1", Role: models.RoleStaff}

	rec := NewFileRecord(models.FileDescriptor{
		Name:         `C:\scans\receipt.png`,
		MimeType:     "IMAGE/PNG",
		SizeBytes:    2048,
		LastModified: modified,
	}, models.CategoryInvoices, "project-1", actor, now)

	require.NotNil(t, rec)
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, "receipt.png", rec.Name)
	assert.Equal(t, `C:\scans\receipt.png`, rec.OriginalName)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.Equal(t, models.FileStatusPending, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	assert.Nil(t, rec.DownloadURL)
	assert.NotNil(t, rec.Tags)
	assert.Empty(t, rec.Tags)
	require.NotNil(t, rec.ProjectID)
	assert.Equal(t, "project-1", *rec.ProjectID)
	assert.Equal(t, "user-1", rec.UploadedBy)
	assert.Equal(t, now, rec.UploadedAt)
	assert.Equal(t, modified, rec.LastModified)
}

func TestNewFileRecordUserAssetAndFreshIDs(t *testing.T) {
	now := time.Now()
	a := NewFileRecord(models.FileDescriptor{Name: "a.pdf", SizeBytes: 1}, models.CategoryDocuments, "", nil, now)
	b := NewFileRecord(models.FileDescriptor{Name: "a.pdf", SizeBytes: 1}, models.CategoryDocuments, "", nil, now)

	assert.Nil(t, a.ProjectID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, now.UTC(), a.LastModified)
}
