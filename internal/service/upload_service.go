package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// FileStore persists file content and metadata. PersistFile stores the
// completed form of record (status completed, progress 100, the returned
// download URL) and may call onProgress with 0..100 while content is written.
type FileStore interface {
	PersistFile(ctx context.Context, record *models.FileRecord, content io.Reader, onProgress func(percent int)) (*models.PersistResult, error)
	DeleteFile(ctx context.Context, id string) error
	ListFiles(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error)
	GetFile(ctx context.Context, id string) (*models.FileRecord, error)
	OpenFile(ctx context.Context, id string) (io.ReadCloser, error)
}

type projectAccessChecker interface {
	CheckAccess(ctx context.Context, projectID string, actor *models.CurrentUser) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// Upload pairs a descriptor with its content stream.
type Upload struct {
	Descriptor models.FileDescriptor
	Content    io.Reader
}

// UploadOptions apply to every file of an upload call.
type UploadOptions struct {
	ProjectID   string
	Description string
	Tags        []string
	// OnProgress is invoked with monotonically increasing percentages per file.
	OnProgress func(fileID string, percent int)
}

// UploadServiceConfig bounds batch uploads.
type UploadServiceConfig struct {
	MaxConcurrent int
}

// UploadService drives files through validation, categorization and persistence.
type UploadService struct {
	store    FileStore
	projects projectAccessChecker
	hub      *ProgressHub
	cache    cacheInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      UploadServiceConfig
	now      func() time.Time
}

// NewUploadService constructs the service with defaults.
func NewUploadService(store FileStore, projects projectAccessChecker, hub *ProgressHub, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &UploadService{
		store:    store,
		projects: projects,
		hub:      hub,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// UploadOne validates and persists a single file. An empty category is
// inferred. On persistence failure the returned record is in error status and
// the error is a storage error; nothing is retried.
func (s *UploadService) UploadOne(ctx context.Context, upload Upload, category models.FileCategory, opts UploadOptions, actor *models.CurrentUser) (*models.FileRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	desc := upload.Descriptor
	if category == "" {
		category = CategorizeFile(desc)
	} else if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown file category "+string(category))
	}
	if result := ValidateFile(desc, category); !result.Valid {
		s.metrics.UploadRejected(category)
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Name+": "+result.Reason)
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Name+": file content is required")
	}
	if opts.ProjectID != "" && s.projects != nil {
		if err := s.projects.CheckAccess(ctx, opts.ProjectID, actor); err != nil {
			return nil, err
		}
	}

	record := NewFileRecord(desc, category, opts.ProjectID, actor, s.now())
	record.Description = strings.TrimSpace(opts.Description)
	record.Tags = append(record.Tags, normalizeTags(opts.Tags)...)
	record.Status = models.FileStatusUploading

	tracker := &progressTracker{last: -1, emit: func(percent int, status models.FileStatus, errMsg string) {
		s.hub.Publish(models.ProgressEvent{
			FileID:   record.ID,
			Name:     record.Name,
			Percent:  percent,
			Status:   status,
			Error:    errMsg,
			Uploader: actor.ID,
		})
		if opts.OnProgress != nil {
			opts.OnProgress(record.ID, percent)
		}
	}}
	tracker.report(0)

	s.metrics.UploadStarted()
	start := time.Now()
	stored := *record
	result, err := s.store.PersistFile(ctx, &stored, upload.Content, tracker.report)
	s.metrics.UploadFinished(category, desc.SizeBytes, time.Since(start), err)
	if err != nil {
		record.Status = models.FileStatusError
		record.Progress = tracker.current()
		tracker.fail(err.Error())
		s.logger.Warn("file upload failed",
			zap.String("file_id", record.ID), zap.String("name", record.Name), zap.String("category", string(category)), zap.Error(err))
		return record, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store "+record.Name)
	}

	record.Status = models.FileStatusCompleted
	record.Progress = 100
	if result != nil {
		record.StorageKey = result.StorageKey
		if result.DownloadURL != "" {
			url := result.DownloadURL
			record.DownloadURL = &url
		}
	}
	tracker.complete()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, fileListCachePattern); err != nil {
			s.logger.Warn("file list cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("file uploaded",
		zap.String("file_id", record.ID), zap.String("category", string(category)), zap.Int64("size", record.SizeBytes))
	return record, nil
}

// UploadMany uploads every file concurrently, bounded by MaxConcurrent, and
// reports per-file outcomes in input order. It never fails as a whole.
func (s *UploadService) UploadMany(ctx context.Context, uploads []Upload, opts UploadOptions, actor *models.CurrentUser) *models.BatchResult {
	type outcome struct {
		record *models.FileRecord
		err    error
	}
	outcomes := make([]outcome, len(uploads))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for i := range uploads {
		i := i
		g.Go(func() error {
			record, err := s.UploadOne(ctx, uploads[i], "", opts, actor)
			outcomes[i] = outcome{record: record, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BatchResult{
		Successful: make([]models.FileRecord, 0, len(uploads)),
		Failed:     make([]models.UploadFailure, 0),
	}
	for i, o := range outcomes {
		if o.err == nil {
			result.Successful = append(result.Successful, *o.record)
			continue
		}
		result.Failed = append(result.Failed, models.UploadFailure{
			Name:   uploads[i].Descriptor.Name,
			Error:  o.err.Error(),
			Record: o.record,
		})
	}
	return result
}

// progressTracker keeps reported progress monotonic and below 100 until the
// upload is confirmed.
type progressTracker struct {
	mu   sync.Mutex
	last int
	done bool
	emit func(percent int, status models.FileStatus, errMsg string)
}

func (t *progressTracker) report(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || percent <= t.last {
		return
	}
	t.last = percent
	t.emit(percent, models.FileStatusUploading, "")
}

func (t *progressTracker) complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.last = 100
	t.emit(100, models.FileStatusCompleted, "")
}

func (t *progressTracker) fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.emit(t.last, models.FileStatusError, msg)
}

func (t *progressTracker) current() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last < 0 {
		return 0
	}
	return t.last
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
