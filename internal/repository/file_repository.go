package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

const fileColumns = `id, name, original_name, size_bytes, mime_type, category, project_id, uploaded_by, uploaded_at,
last_modified, status, progress, download_url, storage_key, description, tags`

// FileRepository stores file metadata in Postgres. Content lives in a blob store.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Insert writes a completed file record.
func (r *FileRepository) Insert(ctx context.Context, record *models.FileRecord) error {
	const query = `INSERT INTO files (` + fileColumns + `)
VALUES (:id, :name, :original_name, :size_bytes, :mime_type, :category, :project_id, :uploaded_by, :uploaded_at,
:last_modified, :status, :progress, :download_url, :storage_key, :description, :tags)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetByID loads one file record.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	var record models.FileRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return &record, nil
}

// Delete removes a record and returns the storage key of its content.
func (r *FileRepository) Delete(ctx context.Context, id string) (string, error) {
	var key string
	if err := r.db.GetContext(ctx, &key, `DELETE FROM files WHERE id = $1 RETURNING storage_key`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", fmt.Errorf("delete file: %w", err)
	}
	return key, nil
}

// List returns records matching filter, newest first.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	var conditions []string
	var args []interface{}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.AssetsOnly {
		conditions = append(conditions, "project_id IS NULL")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.UploadedBy != "" {
		args = append(args, filter.UploadedBy)
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", len(args)))
	}

	query := "SELECT " + fileColumns + " FROM files"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY uploaded_at DESC"

	records := []models.FileRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return records, nil
}
