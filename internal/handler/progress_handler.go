package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/models"
	"github.com/noah-isme/projecthub-api/internal/service"
	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
	"github.com/noah-isme/projecthub-api/pkg/response"
)

const (
	progressWriteWait  = 10 * time.Second
	progressPongWait   = 60 * time.Second
	progressPingPeriod = 30 * time.Second
)

type progressSubscriber interface {
	Subscribe(topic string, listener service.ProgressListener) func()
}

// ProgressHandler streams upload progress events over websockets.
type ProgressHandler struct {
	hub      progressSubscriber
	buffer   int
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewProgressHandler constructs the handler. buffer bounds the events queued
// per connection; events beyond it are dropped for slow readers.
func NewProgressHandler(hub progressSubscriber, buffer int, logger *zap.Logger) *ProgressHandler {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		hub:    hub,
		buffer: buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Uploads godoc
// @Summary Stream progress of every upload by the caller
// @Tags Files
// @Param access_token query string false "JWT when the Authorization header cannot be set"
// @Success 101
// @Router /uploads/progress/ws [get]
func (h *ProgressHandler) Uploads(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.stream(c, service.UploaderTopic(actor.ID), false, nil)
}

// File godoc
// @Summary Stream progress of a single file
// @Description The stream closes after the completed or error event. Only the uploader and staff receive events.
// @Tags Files
// @Param id path string true "File ID"
// @Param access_token query string false "JWT when the Authorization header cannot be set"
// @Success 101
// @Router /files/{id}/progress/ws [get]
func (h *ProgressHandler) File(c *gin.Context) {
	actor := currentUser(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	allow := func(evt models.ProgressEvent) bool {
		return actor.Role.IsStaff() || evt.Uploader == actor.ID
	}
	h.stream(c, c.Param("id"), true, allow)
}

func (h *ProgressHandler) stream(c *gin.Context, topic string, closeOnFinish bool, allow func(models.ProgressEvent) bool) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("progress upgrade failed", zap.Error(err))
		return
	}

	send := make(chan models.ProgressEvent, h.buffer)
	unsubscribe := h.hub.Subscribe(topic, func(evt models.ProgressEvent) {
		if allow != nil && !allow(evt) {
			return
		}
		select {
		case send <- evt:
		default:
			h.logger.Debug("progress event dropped", zap.String("topic", topic), zap.String("file_id", evt.FileID))
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, send, done, closeOnFinish)
}

// readLoop only exists to observe pongs and the peer closing the socket.
func (h *ProgressHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(progressPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(progressPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHandler) writeLoop(conn *websocket.Conn, send <-chan models.ProgressEvent, done <-chan struct{}, closeOnFinish bool) {
	ticker := time.NewTicker(progressPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case evt := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("progress write failed", zap.Error(err))
				return
			}
			if closeOnFinish && (evt.Status == models.FileStatusCompleted || evt.Status == models.FileStatusError) {
				_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(evt.Status)))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
