package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

// ErrSimulatedFailure is returned by SimulatedFileStore when a random upload fails.
var ErrSimulatedFailure = errors.New("simulated upload failure")

// FileMetadata keeps file records in memory.
type FileMetadata struct {
	mu      sync.RWMutex
	records map[string]models.FileRecord
}

// NewFileMetadata builds an empty metadata store.
func NewFileMetadata() *FileMetadata {
	return &FileMetadata{records: map[string]models.FileRecord{}}
}

func (m *FileMetadata) Insert(_ context.Context, record *models.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.ID]; exists {
		return appErrors.Clone(appErrors.ErrConflict, "file already exists")
	}
	m.records[record.ID] = cloneRecord(*record)
	return nil
}

func (m *FileMetadata) GetByID(_ context.Context, id string) (*models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	r = cloneRecord(r)
	return &r, nil
}

// Delete removes a record and returns its storage key.
func (m *FileMetadata) Delete(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return "", appErrors.ErrNotFound
	}
	delete(m.records, id)
	return r.StorageKey, nil
}

// List returns matches newest first.
func (m *FileMetadata) List(_ context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	m.mu.RLock()
	out := make([]models.FileRecord, 0, len(m.records))
	for _, r := range m.records {
		if filter.ProjectID != "" && (r.ProjectID == nil || *r.ProjectID != filter.ProjectID) {
			continue
		}
		if filter.AssetsOnly && r.ProjectID != nil {
			continue
		}
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.UploadedBy != "" && r.UploadedBy != filter.UploadedBy {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

// SimulatedFileStore is a self-contained store for demos and tests. Content is
// held in memory and progress advances in ten steps, one per tick. A
// configurable share of uploads fail after the transfer.
type SimulatedFileStore struct {
	meta        *FileMetadata
	mu          sync.RWMutex
	blobs       map[string][]byte
	tick        time.Duration
	failureRate float64
	apiPrefix   string

	randMu sync.Mutex
	rand   func() float64
}

// NewSimulatedFileStore builds a store. failureRate is clamped to [0, 1].
func NewSimulatedFileStore(tick time.Duration, failureRate float64, apiPrefix string) *SimulatedFileStore {
	if failureRate < 0 {
		failureRate = 0
	}
	if failureRate > 1 {
		failureRate = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &SimulatedFileStore{
		meta:        NewFileMetadata(),
		blobs:       map[string][]byte{},
		tick:        tick,
		failureRate: failureRate,
		apiPrefix:   strings.TrimRight(apiPrefix, "/"),
		rand:        rng.Float64,
	}
}

func (s *SimulatedFileStore) PersistFile(ctx context.Context, record *models.FileRecord, content io.Reader, onProgress func(int)) (*models.PersistResult, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	for step := 1; step <= 10; step++ {
		if s.tick > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.tick):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(step * 10)
		}
	}
	if s.shouldFail() {
		return nil, ErrSimulatedFailure
	}

	key := "memory/" + record.ID
	downloadURL := s.apiPrefix + "/files/" + url.PathEscape(record.ID) + "/content"
	record.Status = models.FileStatusCompleted
	record.Progress = 100
	record.StorageKey = key
	record.DownloadURL = &downloadURL
	if err := s.meta.Insert(ctx, record); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return &models.PersistResult{DownloadURL: downloadURL, StorageKey: key}, nil
}

func (s *SimulatedFileStore) DeleteFile(ctx context.Context, id string) error {
	key, err := s.meta.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

func (s *SimulatedFileStore) ListFiles(ctx context.Context, filter models.FileFilter) ([]models.FileRecord, error) {
	return s.meta.List(ctx, filter)
}

func (s *SimulatedFileStore) GetFile(ctx context.Context, id string) (*models.FileRecord, error) {
	return s.meta.GetByID(ctx, id)
}

func (s *SimulatedFileStore) OpenFile(ctx context.Context, id string) (io.ReadCloser, error) {
	record, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.blobs[record.StorageKey]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SimulatedFileStore) shouldFail() bool {
	if s.failureRate == 0 {
		return false
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand() < s.failureRate
}

func cloneRecord(r models.FileRecord) models.FileRecord {
	if r.Tags != nil {
		r.Tags = append(r.Tags[:0:0], r.Tags...)
	}
	return r
}
