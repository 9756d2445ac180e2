package models

import (
	"time"

	"github.com/lib/pq"
)

// FileCategory is the closed set of buckets a stored file belongs to.
type FileCategory string

const (
	CategoryVideos    FileCategory = "videos"
	CategoryInvoices  FileCategory = "invoices"
	CategoryLicenses  FileCategory = "licenses"
	CategoryDocuments FileCategory = "documents"
	CategoryImages    FileCategory = "images"
)

// FileCategories lists every persistable category.
var FileCategories = []FileCategory{
	CategoryVideos,
	CategoryInvoices,
	CategoryLicenses,
	CategoryDocuments,
	CategoryImages,
}

// Valid reports whether c is one of the persistable categories.
func (c FileCategory) Valid() bool {
	for _, known := range FileCategories {
		if c == known {
			return true
		}
	}
	return false
}

// FileStatus tracks the upload lifecycle of a record.
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusUploading FileStatus = "uploading"
	FileStatusCompleted FileStatus = "completed"
	FileStatusError     FileStatus = "error"
)

// FileDescriptor is what a client tells us about a file before it is stored.
type FileDescriptor struct {
	Name         string    `json:"name" validate:"required"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes" validate:"gte=0"`
	LastModified time.Time `json:"lastModified"`
}

// FileRecord is the persisted metadata of one uploaded file. A nil ProjectID
// marks a user asset that is not tied to a project.
type FileRecord struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	OriginalName string         `db:"original_name" json:"originalName"`
	SizeBytes    int64          `db:"size_bytes" json:"sizeBytes"`
	MimeType     string         `db:"mime_type" json:"mimeType"`
	Category     FileCategory   `db:"category" json:"category"`
	ProjectID    *string        `db:"project_id" json:"projectId"`
	UploadedBy   string         `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt   time.Time      `db:"uploaded_at" json:"uploadedAt"`
	LastModified time.Time      `db:"last_modified" json:"lastModified"`
	Status       FileStatus     `db:"status" json:"status"`
	Progress     int            `db:"progress" json:"progress"`
	DownloadURL  *string        `db:"download_url" json:"downloadUrl"`
	Description  string         `db:"description" json:"description"`
	Tags         pq.StringArray `db:"tags" json:"tags"`
	StorageKey   string         `db:"storage_key" json:"-"`
}

// PersistResult is what a file store reports once content and metadata are stored.
type PersistResult struct {
	DownloadURL string
	StorageKey  string
}

// FileFilter narrows file listings. AssetsOnly selects records without a project.
type FileFilter struct {
	ProjectID  string
	Category   FileCategory
	UploadedBy string
	AssetsOnly bool
}

// ValidationResult is the verdict for a single descriptor.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidationReport partitions a batch of descriptors.
type ValidationReport struct {
	Valid   []FileDescriptor `json:"valid"`
	Invalid []FileDescriptor `json:"invalid"`
	Reasons []string         `json:"reasons"`
}

// UploadFailure describes one file of a batch that could not be stored.
// Record is nil when the file was rejected before a record was built.
type UploadFailure struct {
	Name   string      `json:"name"`
	Error  string      `json:"error"`
	Record *FileRecord `json:"record,omitempty"`
}

// BatchResult aggregates a multi-file upload.
type BatchResult struct {
	Successful []FileRecord    `json:"successful"`
	Failed     []UploadFailure `json:"failed"`
}

// ProgressEvent is emitted while a file is being persisted.
type ProgressEvent struct {
	FileID   string     `json:"fileId"`
	Name     string     `json:"name"`
	Percent  int        `json:"percent"`
	Status   FileStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Uploader string     `json:"-"`
}

// DownloadLink is a time-limited URL for fetching file content.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
