package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/storage"
)

type mapCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mapCache) Invalidate(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	for key := range m.entries {
		if strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			delete(m.entries, key)
		}
	}
	return nil
}

type presigningStore struct {
	*stubFileStore
	link string
	err  error
}

func (p *presigningStore) PresignDownload(ctx context.Context, record *models.FileRecord) (string, time.Time, error) {
	return p.link, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), p.err
}

var clientActor = &models.CurrentUser{ID: "client-1", Role: models.RoleClient, Name: "Cleo"}

func seedFile(store *stubFileStore, id, owner string, projectID *string) {
	store.records[id] = models.FileRecord{
		ID:         id,
		Name:       id + ".pdf",
		SizeBytes:  10,
		MimeType:   "application/pdf",
		Category:   models.CategoryDocuments,
		UploadedBy: owner,
		ProjectID:  projectID,
		Status:     models.FileStatusCompleted,
		Progress:   100,
	}
}

func TestFileServiceListScopesClientsAndCaches(t *testing.T) {
	store := newStubFileStore()
	seedFile(store, "f1", clientActor.ID, nil)
	seedFile(store, "f2", "someone-else", nil)
	cache := newMapCache()
	svc := NewFileService(store, nil, nil, cache, nil, FileServiceConfig{})

	files, hit, err := svc.List(context.Background(), models.FileFilter{}, clientActor)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, files, 1)
	assert.Equal(t, "f1", files[0].ID)

	files, hit, err = svc.List(context.Background(), models.FileFilter{}, clientActor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, files, 1)
	assert.Equal(t, 1, store.listCalls)

	staffFiles, _, err := svc.List(context.Background(), models.FileFilter{}, staffActor)
	require.NoError(t, err)
	assert.Len(t, staffFiles, 2)
}

func TestFileServiceListValidation(t *testing.T) {
	svc := NewFileService(newStubFileStore(), nil, nil, nil, nil, FileServiceConfig{})

	_, _, err := svc.List(context.Background(), models.FileFilter{Category: "archives"}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), models.FileFilter{ProjectID: "p", AssetsOnly: true}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), models.FileFilter{}, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestFileServiceListStorageFailure(t *testing.T) {
	store := newStubFileStore()
	store.listErr = errors.New("connection reset")
	svc := NewFileService(store, nil, nil, nil, nil, FileServiceConfig{})

	_, _, err := svc.List(context.Background(), models.FileFilter{}, staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrStorage))
}

func TestFileServiceGetAuthorization(t *testing.T) {
	store := newStubFileStore()
	project := "project-1"
	seedFile(store, "own", clientActor.ID, nil)
	seedFile(store, "foreign", "other", nil)
	seedFile(store, "shared", "other", &project)
	projects := &stubProjectAccess{denied: map[string]error{}}
	svc := NewFileService(store, projects, nil, nil, nil, FileServiceConfig{})

	_, err := svc.Get(context.Background(), "own", clientActor)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), "foreign", clientActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(context.Background(), "shared", clientActor)
	assert.NoError(t, err)

	projects.denied[project] = appErrors.ErrForbidden
	_, err = svc.Get(context.Background(), "shared", clientActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(context.Background(), "missing", staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestFileServiceDelete(t *testing.T) {
	store := newStubFileStore()
	seedFile(store, "own", clientActor.ID, nil)
	seedFile(store, "foreign", "other", nil)
	cache := newMapCache()
	svc := NewFileService(store, nil, nil, cache, nil, FileServiceConfig{})

	err := svc.Delete(context.Background(), "foreign", clientActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(context.Background(), "own", clientActor))
	assert.Equal(t, []string{"own"}, store.deleted)
	assert.Equal(t, []string{fileListCachePattern}, cache.invalidated)

	require.NoError(t, svc.Delete(context.Background(), "foreign", staffActor))

	err = svc.Delete(context.Background(), "own", staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestFileServiceDownloadLinkSignedFallback(t *testing.T) {
	store := newStubFileStore()
	store.content = "hello"
	seedFile(store, "f1", staffActor.ID, nil)
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	svc := NewFileService(store, nil, signer, nil, nil, FileServiceConfig{APIPrefix: "/api/v1/"})

	link, err := svc.DownloadLink(context.Background(), "f1", staffActor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/files/download/f1?token="))

	token := link.URL[strings.Index(link.URL, "token=")+len("token="):]
	token, err = url.QueryUnescape(token)
	require.NoError(t, err)
	download, err := svc.OpenSigned(context.Background(), "f1", token)
	require.NoError(t, err)
	defer download.Content.Close()
	body, _ := io.ReadAll(download.Content)
	assert.Equal(t, "hello", string(body))

	_, err = svc.OpenSigned(context.Background(), "f1", "123.bogus")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestFileServiceDownloadLinkPrefersPresign(t *testing.T) {
	base := newStubFileStore()
	seedFile(base, "f1", staffActor.ID, nil)
	store := &presigningStore{stubFileStore: base, link: "https://bucket.example/files/f1?sig=1"}
	svc := NewFileService(store, nil, nil, nil, nil, FileServiceConfig{})

	link, err := svc.DownloadLink(context.Background(), "f1", staffActor)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/files/f1?sig=1", link.URL)

	store.err = errors.New("no credentials")
	_, err = svc.DownloadLink(context.Background(), "f1", staffActor)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestFileServiceValidate(t *testing.T) {
	svc := NewFileService(newStubFileStore(), nil, nil, nil, nil, FileServiceConfig{})

	report := svc.Validate([]models.FileDescriptor{
		{Name: "a.pdf", MimeType: "application/pdf", SizeBytes: 10},
		{Name: "demo.mp4", MimeType: "video/mp4", SizeBytes: 600 * mib},
	})
	assert.Len(t, report.Valid, 1)
	require.Len(t, report.Invalid, 1)
	assert.Contains(t, report.Reasons[0], "demo.mp4")
}
