package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/jobs"
	"github.com/noah-isme/projecthub-api/pkg/storage"
)

// BlobPurgeJob is the job kind that deletes orphaned blob content.
const BlobPurgeJob = "blob.purge"

type fileMetadataStore interface {
	Insert(ctx context.Context, record *models.FileRecord) error
	GetByID(ctx context.Context, id string) (*models.FileRecord, error)
	Delete(ctx context.Context, id string) (string, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error)
}

type blobPresigner interface {
	PresignGet(ctx context.Context, key, filename string) (string, time.Time, error)
}

type purgeQueue interface {
	Enqueue(job jobs.Job) error
}

// ObjectFileStore keeps file metadata in a relational store and content in a
// blob store. Blob deletions run on the purge queue when one is attached.
type ObjectFileStore struct {
	meta      fileMetadataStore
	blobs     storage.BlobStore
	purge     purgeQueue
	apiPrefix string
	logger    *zap.Logger
}

// NewObjectFileStore wires metadata and content storage. purge may be nil, in
// which case blobs are deleted inline.
func NewObjectFileStore(meta fileMetadataStore, blobs storage.BlobStore, purge purgeQueue, apiPrefix string, logger *zap.Logger) *ObjectFileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectFileStore{meta: meta, blobs: blobs, purge: purge, apiPrefix: strings.TrimRight(apiPrefix, "/"), logger: logger}
}

// NewBlobPurgeHandler deletes the blob named by a purge job. Missing objects
// count as purged.
func NewBlobPurgeHandler(blobs storage.BlobStore) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		if err := blobs.Delete(ctx, job.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return err
		}
		return nil
	}
}

// PersistFile streams content to the blob store, then records the completed metadata.
func (s *ObjectFileStore) PersistFile(ctx context.Context, record *models.FileRecord, content io.Reader, onProgress func(int)) (*models.PersistResult, error) {
	key := storage.ObjectKey(record.ID, record.OriginalName)
	reader := storage.NewProgressReader(content, func(read int64) {
		if onProgress != nil && record.SizeBytes > 0 {
			onProgress(int(read * 100 / record.SizeBytes))
		}
	})
	if err := s.blobs.Put(ctx, key, reader, record.SizeBytes, record.MimeType); err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	downloadURL := s.blobs.PublicURL(key)
	if downloadURL == "" {
		downloadURL = s.apiPrefix + "/files/" + url.PathEscape(record.ID) + "/content"
	}
	record.Status = models.FileStatusCompleted
	record.Progress = 100
	record.StorageKey = key
	record.DownloadURL = &downloadURL

	if err := s.meta.Insert(ctx, record); err != nil {
		s.discard(key)
		return nil, err
	}
	return &models.PersistResult{DownloadURL: downloadURL, StorageKey: key}, nil
}

// DeleteFile removes the metadata immediately and the content asynchronously.
func (s *ObjectFileStore) DeleteFile(ctx context.Context, id string) error {
	key, err := s.meta.Delete(ctx, id)
	if err != nil {
		return err
	}
	if key != "" {
		s.discard(key)
	}
	return nil
}

// ListFiles returns metadata matching filter.
func (s *ObjectFileStore) ListFiles(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	return s.meta.List(ctx, filter)
}

// GetFile returns one record.
func (s *ObjectFileStore) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	return s.meta.GetByID(ctx, id)
}

// OpenFile opens the stored content of a record.
func (s *ObjectFileStore) OpenFile(ctx context.Context, id string) (io.ReadCloser, error) {
	record, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rc, err := s.blobs.Open(ctx, record.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("open content: %w", err)
	}
	return rc, nil
}

// PresignDownload returns a direct blob URL when the blob store can presign.
// An empty URL means the caller should fall back to API links.
func (s *ObjectFileStore) PresignDownload(ctx context.Context, record *models.FileRecord) (string, time.Time, error) {
	presigner, ok := s.blobs.(blobPresigner)
	if !ok || record.StorageKey == "" {
		return "", time.Time{}, nil
	}
	return presigner.PresignGet(ctx, record.StorageKey, record.Name)
}

func (s *ObjectFileStore) discard(key string) {
	if s.purge != nil {
		err := s.purge.Enqueue(jobs.Job{ID: uuid.NewString(), Kind: BlobPurgeJob, Key: key})
		if err == nil {
			return
		}
		s.logger.Warn("purge enqueue failed, deleting inline", zap.String("key", key), zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := NewBlobPurgeHandler(s.blobs)(ctx, jobs.Job{Key: key}); err != nil {
		s.logger.Error("blob delete failed", zap.String("key", key), zap.Error(err))
	}
}
