package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
)

// ProgressListener receives upload progress events.
type ProgressListener func(models.ProgressEvent)

// ProgressHub fans progress events out to listeners keyed by file id, and to
// the topic of the uploading user so one subscriber can follow a whole batch.
type ProgressHub struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string]map[uint64]ProgressListener
	logger *zap.Logger
}

// NewProgressHub constructs an empty hub.
func NewProgressHub(logger *zap.Logger) *ProgressHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHub{topics: make(map[string]map[uint64]ProgressListener), logger: logger}
}

// UploaderTopic is the topic that carries every event of one uploader.
func UploaderTopic(userID string) string {
	return "uploader:" + userID
}

// Subscribe registers listener on topic (a file id or an UploaderTopic). The
// returned func removes it; calling it more than once is a no-op.
func (h *ProgressHub) Subscribe(topic string, listener ProgressListener) func() {
	if listener == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	listeners, ok := h.topics[topic]
	if !ok {
		listeners = make(map[uint64]ProgressListener)
		h.topics[topic] = listeners
	}
	listeners[id] = listener
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if listeners, ok := h.topics[topic]; ok {
				delete(listeners, id)
				if len(listeners) == 0 {
					delete(h.topics, topic)
				}
			}
		})
	}
}

// Publish delivers evt synchronously. Listeners run outside the hub lock, so
// they may subscribe or unsubscribe from within the callback.
func (h *ProgressHub) Publish(evt models.ProgressEvent) {
	if h == nil {
		return
	}
	targets := h.snapshot(evt.FileID)
	if evt.Uploader != "" {
		targets = append(targets, h.snapshot(UploaderTopic(evt.Uploader))...)
	}
	for _, listener := range targets {
		h.deliver(listener, evt)
	}
}

// Listeners reports how many listeners are registered on topic.
func (h *ProgressHub) Listeners(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *ProgressHub) snapshot(topic string) []ProgressListener {
	h.mu.RLock()
	defer h.mu.RUnlock()
	listeners := h.topics[topic]
	out := make([]ProgressListener, 0, len(listeners))
	for _, l := range listeners {
		out = append(out, l)
	}
	return out
}

func (h *ProgressHub) deliver(listener ProgressListener, evt models.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("progress listener panicked", zap.String("file_id", evt.FileID), zap.Any("panic", r))
		}
	}()
	listener(evt)
}
