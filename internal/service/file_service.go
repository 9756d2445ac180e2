package service

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/storage"
)

const (
	fileListCachePrefix  = "files:list:"
	fileListCachePattern = fileListCachePrefix + "*"
)

type fileListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type downloadSigner interface {
	Sign(fileID string) (string, time.Time, error)
	Verify(fileID, token string) (time.Time, error)
}

// filePresigner is implemented by stores whose blobs can be fetched directly.
type filePresigner interface {
	PresignDownload(ctx context.Context, record *models.FileRecord) (string, time.Time, error)
}

// FileDownload bundles an open content stream with its metadata.
type FileDownload struct {
	Record  *models.FileRecord
	Content io.ReadCloser
}

// FileServiceConfig holds link generation settings.
type FileServiceConfig struct {
	APIPrefix string
	CacheTTL  time.Duration
}

// FileService serves stored files: listings, metadata, content and download links.
type FileService struct {
	store    FileStore
	projects projectAccessChecker
	signer   downloadSigner
	cache    fileListCache
	logger   *zap.Logger
	cfg      FileServiceConfig
}

// NewFileService constructs the service with defaults.
func NewFileService(store FileStore, projects projectAccessChecker, signer downloadSigner, cache fileListCache, logger *zap.Logger, cfg FileServiceConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &FileService{store: store, projects: projects, signer: signer, cache: cache, logger: logger, cfg: cfg}
}

// Validate is a dry run of the upload rules over a batch of descriptors.
func (s *FileService) Validate(descs []models.FileDescriptor) models.ValidationReport {
	return ValidateFiles(descs)
}

// List returns the files visible to actor. The second result reports a cache hit.
func (s *FileService) List(ctx context.Context, filter models.FileFilter, actor *models.CurrentUser) ([]models.FileRecord, bool, error) {
	if actor == nil {
		return nil, false, appErrors.ErrUnauthorized
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unknown file category "+string(filter.Category))
	}
	if filter.ProjectID != "" {
		if filter.AssetsOnly {
			return nil, false, appErrors.Clone(appErrors.ErrValidation, "projectId and assets cannot be combined")
		}
		if err := s.checkProject(ctx, filter.ProjectID, actor); err != nil {
			return nil, false, err
		}
	} else if !actor.Role.IsStaff() {
		filter.UploadedBy = actor.ID
	}

	key := fileListCacheKey(filter)
	if s.cache != nil {
		var cached []models.FileRecord
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return cached, true, nil
		}
	}

	records, err := s.store.ListFiles(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list files")
	}
	if records == nil {
		records = []models.FileRecord{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, records, s.cfg.CacheTTL)
	}
	return records, false, nil
}

// Get returns a file's metadata when actor may see it.
func (s *FileService) Get(ctx context.Context, id string, actor *models.CurrentUser) (*models.FileRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, record, actor); err != nil {
		return nil, err
	}
	return record, nil
}

// Open streams the content of a file actor may see.
func (s *FileService) Open(ctx context.Context, id string, actor *models.CurrentUser) (*FileDownload, error) {
	record, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, record)
}

// Delete removes a file. Staff may delete any file, other users only their own.
func (s *FileService) Delete(ctx context.Context, id string, actor *models.CurrentUser) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	record, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsStaff() && record.UploadedBy != actor.ID {
		return appErrors.ErrForbidden
	}
	if err := s.store.DeleteFile(ctx, id); err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to delete file")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, fileListCachePattern); err != nil {
			s.logger.Warn("file list cache invalidation failed", zap.Error(err))
		}
	}
	s.logger.Info("file deleted", zap.String("file_id", id), zap.String("actor_id", actor.ID))
	return nil
}

// DownloadLink issues a time-limited URL for the file. Stores that can presign
// direct blob access are preferred over API signed links.
func (s *FileService) DownloadLink(ctx context.Context, id string, actor *models.CurrentUser) (*models.DownloadLink, error) {
	record, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if presigner, ok := s.store.(filePresigner); ok {
		link, expiresAt, err := presigner.PresignDownload(ctx, record)
		if err != nil {
			s.logger.Warn("presign download failed, falling back to signed link", zap.String("file_id", id), zap.Error(err))
		} else if link != "" {
			return &models.DownloadLink{URL: link, ExpiresAt: expiresAt}, nil
		}
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signing not configured")
	}
	token, expiresAt, err := s.signer.Sign(record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	link := strings.TrimRight(s.cfg.APIPrefix, "/") + "/files/download/" + url.PathEscape(record.ID) + "?token=" + url.QueryEscape(token)
	return &models.DownloadLink{URL: link, ExpiresAt: expiresAt}, nil
}

// OpenSigned streams a file for the holder of a valid download token.
func (s *FileService) OpenSigned(ctx context.Context, id, token string) (*FileDownload, error) {
	if s.signer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if _, err := s.signer.Verify(id, token); err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, record)
}

func (s *FileService) fetch(ctx context.Context, id string) (*models.FileRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file id is required")
	}
	record, err := s.store.GetFile(ctx, id)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load file")
	}
	return record, nil
}

func (s *FileService) open(ctx context.Context, record *models.FileRecord) (*FileDownload, error) {
	content, err := s.store.OpenFile(ctx, record.ID)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open file content")
	}
	return &FileDownload{Record: record, Content: content}, nil
}

func (s *FileService) authorize(ctx context.Context, record *models.FileRecord, actor *models.CurrentUser) error {
	if actor.Role.IsStaff() || record.UploadedBy == actor.ID {
		return nil
	}
	if record.ProjectID != nil {
		return s.checkProject(ctx, *record.ProjectID, actor)
	}
	return appErrors.ErrForbidden
}

func (s *FileService) checkProject(ctx context.Context, projectID string, actor *models.CurrentUser) error {
	if s.projects == nil {
		return nil
	}
	return s.projects.CheckAccess(ctx, projectID, actor)
}

func fileListCacheKey(filter models.FileFilter) string {
	assets := "0"
	if filter.AssetsOnly {
		assets = "1"
	}
	return fileListCachePrefix + "p=" + filter.ProjectID + ":c=" + string(filter.Category) + ":u=" + filter.UploadedBy + ":a=" + assets
}
