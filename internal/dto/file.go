package dto

import "github.com/noah-isme/projecthub-api/internal/models"

// ValidateFilesRequest is the payload of the upload dry run.
type ValidateFilesRequest struct {
	Files []models.FileDescriptor `json:"files" validate:"required,min=1,dive"`
}

// FileListQuery holds the query parameters of the file listing.
type FileListQuery struct {
	ProjectID  string `form:"projectId"`
	Category   string `form:"category"`
	UploadedBy string `form:"uploadedBy"`
	Assets     bool   `form:"assets"`
}

// UploadForm holds the non-file fields of a multipart upload.
type UploadForm struct {
	ProjectID   string   `form:"projectId"`
	Category    string   `form:"category"`
	Description string   `form:"description"`
	Tags        []string `form:"tags"`
}
