package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/projecthub-api/internal/dto"
	"github.com/noah-isme/projecthub-api/internal/middleware"
	"github.com/noah-isme/projecthub-api/internal/models"
	"github.com/noah-isme/projecthub-api/internal/service"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/response"
)

type uploadService interface {
	UploadOne(ctx context.Context, upload service.Upload, category models.FileCategory, opts service.UploadOptions, actor *models.CurrentUser) (*models.FileRecord, error)
	UploadMany(ctx context.Context, uploads []service.Upload, opts service.UploadOptions, actor *models.CurrentUser) *models.BatchResult
}

type fileService interface {
	Validate(descs []models.FileDescriptor) models.ValidationReport
	List(ctx context.Context, filter models.FileFilter, actor *models.CurrentUser) ([]models.FileRecord, bool, error)
	Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.FileRecord, error)
	Open(ctx context.Context, id string, actor *models.CurrentUser) (*service.FileDownload, error)
	Delete(ctx context.Context, id string, actor *models.CurrentUser) error
	DownloadLink(ctx context.Context, id string, actor *models.CurrentUser) (*models.DownloadLink, error)
	OpenSigned(ctx context.Context, id, token string) (*service.FileDownload, error)
}

// FileHandler exposes upload, listing and download endpoints.
type FileHandler struct {
	uploads         uploadService
	files           fileService
	maxRequestBytes int64
}

// NewFileHandler constructs the handler. maxRequestBytes caps a whole upload request.
func NewFileHandler(uploads uploadService, files fileService, maxRequestBytes int64) *FileHandler {
	if maxRequestBytes <= 0 {
		maxRequestBytes = 1 << 30
	}
	return &FileHandler{uploads: uploads, files: files, maxRequestBytes: maxRequestBytes}
}

// Upload godoc
// @Summary Upload files
// @Description Stores every file part independently. Responds 201 when all succeed, 207 on partial failure and 422 when none succeed. With a single file and an explicit category the category is enforced.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Files (repeatable)"
// @Param projectId formData string false "Project ID; omit for a user asset"
// @Param category formData string false "Category override for single file uploads"
// @Param description formData string false "Description"
// @Param tags formData []string false "Tags"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if c.Request.ContentLength > h.maxRequestBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxRequestBytes)))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("upload exceeds %d bytes", h.maxRequestBytes)))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart form data is required"))
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	var meta dto.UploadForm
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload fields"))
		return
	}

	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "at least one file is required"))
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			closeUploads(uploads)
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open "+fh.Filename))
			return
		}
		mimeType, err := detectMIME(fh, src)
		if err != nil {
			_ = src.Close()
			closeUploads(uploads)
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect "+fh.Filename))
			return
		}
		uploads = append(uploads, service.Upload{
			Descriptor: models.FileDescriptor{Name: fh.Filename, MimeType: mimeType, SizeBytes: fh.Size},
			Content:    src,
		})
	}
	defer closeUploads(uploads)

	opts := service.UploadOptions{
		ProjectID:   strings.TrimSpace(meta.ProjectID),
		Description: meta.Description,
		Tags:        splitTags(meta.Tags),
	}

	if category := strings.TrimSpace(meta.Category); category != "" {
		if len(uploads) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "category can only be set for a single file"))
			return
		}
		record, err := h.uploads.UploadOne(c.Request.Context(), uploads[0], models.FileCategory(category), opts, actor)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, record)
		return
	}

	result := h.uploads.UploadMany(c.Request.Context(), uploads, opts, actor)
	response.Batch(c, result, len(result.Successful), len(result.Failed))
}

// Validate godoc
// @Summary Dry-run upload validation
// @Tags Files
// @Accept json
// @Produce json
// @Param payload body dto.ValidateFilesRequest true "Descriptors"
// @Success 200 {object} response.Envelope
// @Router /files/validate [post]
func (h *FileHandler) Validate(c *gin.Context) {
	var req dto.ValidateFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "files is required"))
		return
	}
	response.JSON(c, http.StatusOK, h.files.Validate(req.Files), nil)
}

// List godoc
// @Summary List files
// @Tags Files
// @Produce json
// @Param projectId query string false "Project ID"
// @Param category query string false "Category"
// @Param uploadedBy query string false "Uploader ID (staff only)"
// @Param assets query bool false "Only files without a project"
// @Success 200 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	var query dto.FileListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	filter := models.FileFilter{
		ProjectID:  strings.TrimSpace(query.ProjectID),
		Category:   models.FileCategory(strings.TrimSpace(query.Category)),
		UploadedBy: strings.TrimSpace(query.UploadedBy),
		AssetsOnly: query.Assets,
	}
	files, hit, err := h.files.List(c.Request.Context(), filter, currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetMeta(c, "count", len(files))
	response.JSON(c, http.StatusOK, files, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	record, err := h.files.Get(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Content godoc
// @Summary Stream file content
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param download query bool false "Send as attachment"
// @Success 200 {file} file
// @Router /files/{id}/content [get]
func (h *FileHandler) Content(c *gin.Context) {
	download, err := h.files.Open(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, download, c.Query("download") == "true")
}

// DownloadLink godoc
// @Summary Issue a time-limited download URL
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/download-url [get]
func (h *FileHandler) DownloadLink(c *gin.Context) {
	link, err := h.files.DownloadLink(c.Request.Context(), c.Param("id"), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// SignedDownload godoc
// @Summary Download through a signed link
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/download/{id} [get]
func (h *FileHandler) SignedDownload(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.files.OpenSigned(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveFile(c, download, true)
}

// Delete godoc
// @Summary Delete a file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), c.Param("id"), currentUser(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func serveFile(c *gin.Context, download *service.FileDownload, attachment bool) {
	defer download.Content.Close() //nolint:errcheck
	disposition := "inline"
	if attachment {
		disposition = "attachment"
	}
	record := download.Record
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, record.Name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, record.SizeBytes, record.MimeType, download.Content, nil)
}

// detectMIME trusts the part's declared type unless it is missing or generic,
// in which case the content is sniffed and the reader rewound.
func detectMIME(fh *multipart.FileHeader, src multipart.File) (string, error) {
	declared := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	detected, err := mimetype.DetectReader(src)
	if err != nil {
		return "", err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return detected.String(), nil
}

func splitTags(raw []string) []string {
	var tags []string
	for _, value := range raw {
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func closeUploads(uploads []service.Upload) {
	for _, u := range uploads {
		if closer, ok := u.Content.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}
