package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/projecthub-api/internal/models"
)

func TestProgressHubMultipleListeners(t *testing.T) {
	hub := NewProgressHub(nil)
	var a, b []int
	unsubA := hub.Subscribe("file-1", func(e models.ProgressEvent) { a = append(a, e.Percent) })
	hub.Subscribe("file-1", func(e models.ProgressEvent) { b = append(b, e.Percent) })

	hub.Publish(models.ProgressEvent{FileID: "file-1", Percent: 10})
	unsubA()
	unsubA()
	hub.Publish(models.ProgressEvent{FileID: "file-1", Percent: 20})
	hub.Publish(models.ProgressEvent{FileID: "file-2", Percent: 30})

	assert.Equal(t, []int{10}, a)
	assert.Equal(t, []int{10, 20}, b)
	assert.Equal(t, 1, hub.Listeners("file-1"))
}

func TestProgressHubPublishWithoutListenersIsNoop(t *testing.T) {
	hub := NewProgressHub(nil)
	unsub := hub.Subscribe("file-1", func(models.ProgressEvent) {})
	unsub()
	assert.NotPanics(t, func() { hub.Publish(models.ProgressEvent{FileID: "file-1", Percent: 50}) })
	assert.Equal(t, 0, hub.Listeners("file-1"))

	var nilHub *ProgressHub
	assert.NotPanics(t, func() { nilHub.Publish(models.ProgressEvent{FileID: "x"}) })
}

func TestProgressHubUploaderTopic(t *testing.T) {
	hub := NewProgressHub(nil)
	var mu sync.Mutex
	var got []string
	hub.Subscribe(UploaderTopic("user-1"), func(e models.ProgressEvent) {
		mu.Lock()
		got = append(got, e.FileID)
		mu.Unlock()
	})

	hub.Publish(models.ProgressEvent{FileID: "a", Uploader: "user-1"})
	hub.Publish(models.ProgressEvent{FileID: "b", Uploader: "user-2"})
	hub.Publish(models.ProgressEvent{FileID: "c", Uploader: "user-1"})

	assert.Equal(t, []string{"a", "c"}, got)
}

func TestProgressHubRecoversListenerPanic(t *testing.T) {
	hub := NewProgressHub(nil)
	called := false
	hub.Subscribe("f", func(models.ProgressEvent) { panic("boom") })
	hub.Subscribe("f", func(models.ProgressEvent) { called = true })

	assert.NotPanics(t, func() { hub.Publish(models.ProgressEvent{FileID: "f"}) })
	assert.True(t, called)
}
