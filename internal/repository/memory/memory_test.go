package memory

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/projecthub-api/internal/models"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

func TestSimulatedFileStoreLifecycle(t *testing.T) {
	store := NewSimulatedFileStore(0, 0, "/api/v1")
	record := &models.FileRecord{ID: "f1", Name: "a.pdf", SizeBytes: 3, UploadedBy: "u1", UploadedAt: time.Now()}

	var progress []int
	result, err := store.PersistFile(context.Background(), record, strings.NewReader("abc"), func(p int) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, progress)
	assert.Equal(t, "/api/v1/files/f1/content", result.DownloadURL)

	rc, err := store.OpenFile(context.Background(), "f1")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(body))

	files, err := store.ListFiles(context.Background(), models.FileFilter{UploadedBy: "u1", AssetsOnly: true})
	require.NoError(t, err)
	assert.Len(t, files, 1)

	require.NoError(t, store.DeleteFile(context.Background(), "f1"))
	_, err = store.GetFile(context.Background(), "f1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSimulatedFileStoreFailure(t *testing.T) {
	store := NewSimulatedFileStore(0, 0.5, "")
	store.rand = func() float64 { return 0.1 }

	_, err := store.PersistFile(context.Background(), &models.FileRecord{ID: "f1"}, strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, ErrSimulatedFailure)
	_, err = store.GetFile(context.Background(), "f1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSimulatedFileStoreHonoursCancellation(t *testing.T) {
	store := NewSimulatedFileStore(time.Second, 0, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.PersistFile(ctx, &models.FileRecord{ID: "f1"}, strings.NewReader("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileMetadataFilters(t *testing.T) {
	meta := NewFileMetadata()
	project := "p1"
	now := time.Now()
	require.NoError(t, meta.Insert(context.Background(), &models.FileRecord{ID: "a", ProjectID: &project, Category: models.CategoryImages, UploadedAt: now}))
	require.NoError(t, meta.Insert(context.Background(), &models.FileRecord{ID: "b", Category: models.CategoryImages, UploadedAt: now.Add(time.Second)}))
	require.NoError(t, meta.Insert(context.Background(), &models.FileRecord{ID: "c", Category: models.CategoryVideos, UploadedAt: now.Add(2 * time.Second)}))

	byProject, _ := meta.List(context.Background(), models.FileFilter{ProjectID: "p1"})
	assert.Len(t, byProject, 1)

	assets, _ := meta.List(context.Background(), models.FileFilter{AssetsOnly: true})
	require.Len(t, assets, 2)
	assert.Equal(t, "c", assets[0].ID)

	images, _ := meta.List(context.Background(), models.FileFilter{Category: models.CategoryImages})
	assert.Len(t, images, 2)

	err := meta.Insert(context.Background(), &models.FileRecord{ID: "a"})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestMilestoneStoreConcurrentStatusWritesLastWins(t *testing.T) {
	store := NewMilestoneStore()
	require.NoError(t, store.Create(context.Background(), &models.Milestone{ID: "m1", ProjectID: "p1", Status: models.MilestonePending}))

	var wg sync.WaitGroup
	statuses := []models.MilestoneStatus{models.MilestoneInProgress, models.MilestoneInReview, models.MilestoneCompleted}
	for _, status := range statuses {
		status := status
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), "m1", models.MilestonePatch{Status: &status})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Contains(t, statuses, got.Status)
}

func TestProjectStorePaging(t *testing.T) {
	store := NewProjectStore()
	base := time.Now()
	client := "c1"
	for i, name := range []string{"Alpha", "Beta", "Gamma"} {
		require.NoError(t, store.Create(context.Background(), &models.Project{ID: name, Name: name, ClientID: &client, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	page, total, err := store.List(context.Background(), models.ProjectFilter{ClientID: "c1", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Alpha", page[0].ID)

	found, total, _ := store.List(context.Background(), models.ProjectFilter{Search: "et"})
	assert.Equal(t, 1, total)
	assert.Equal(t, "Beta", found[0].ID)
}

func TestDemoUsers(t *testing.T) {
	users, err := DemoUsers("secret", time.Now())
	require.NoError(t, err)
	require.Len(t, users, 3)

	store := NewUserStore(users...)
	user, err := store.FindByEmail(context.Background(), "CLIENT@projecthub.local")
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret")))

	require.NoError(t, store.UpdateLastLogin(context.Background(), DemoClientID, time.Now()))
	user, _ = store.FindByID(context.Background(), DemoClientID)
	assert.NotNil(t, user.LastLogin)
}
