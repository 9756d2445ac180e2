package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projecthub-api/internal/models"
	"github.com/noah-isme/projecthub-api/internal/service"
)

func progressServer(t *testing.T, hub *service.ProgressHub, userID string, role models.UserRole) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewProgressHandler(hub, 4, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) { withUser(c, userID, role) })
	r.GET("/uploads/progress/ws", h.Uploads)
	r.GET("/files/:id/progress/ws", h.File)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialProgress(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestProgressHandlerFileStreamClosesOnCompletion(t *testing.T) {
	hub := service.NewProgressHub(nil)
	srv := progressServer(t, hub, "client-1", models.RoleClient)
	conn := dialProgress(t, srv, "/files/f1/progress/ws")

	require.Eventually(t, func() bool { return hub.Listeners("f1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(models.ProgressEvent{FileID: "f1", Percent: 10, Status: models.FileStatusUploading, Uploader: "someone-else"})
	hub.Publish(models.ProgressEvent{FileID: "f1", Percent: 50, Status: models.FileStatusUploading, Uploader: "client-1"})
	hub.Publish(models.ProgressEvent{FileID: "f1", Percent: 100, Status: models.FileStatusCompleted, Uploader: "client-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, 50, first.Percent)
	assert.Equal(t, models.FileStatusCompleted, second.Status)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	assert.Eventually(t, func() bool { return hub.Listeners("f1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestProgressHandlerUploaderStream(t *testing.T) {
	hub := service.NewProgressHub(nil)
	srv := progressServer(t, hub, "staff-1", models.RoleStaff)
	conn := dialProgress(t, srv, "/uploads/progress/ws")

	topic := service.UploaderTopic("staff-1")
	require.Eventually(t, func() bool { return hub.Listeners(topic) == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(models.ProgressEvent{FileID: "a", Percent: 100, Status: models.FileStatusCompleted, Uploader: "staff-1"})
	hub.Publish(models.ProgressEvent{FileID: "b", Percent: 30, Status: models.FileStatusUploading, Uploader: "staff-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "a", evt.FileID)
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "b", evt.FileID)
}

func TestProgressHandlerUnsubscribesOnDisconnect(t *testing.T) {
	hub := service.NewProgressHub(nil)
	srv := progressServer(t, hub, "staff-1", models.RoleStaff)
	conn := dialProgress(t, srv, "/uploads/progress/ws")

	topic := service.UploaderTopic("staff-1")
	require.Eventually(t, func() bool { return hub.Listeners(topic) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Listeners(topic) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestProgressHandlerRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewProgressHandler(service.NewProgressHub(nil), 0, nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/uploads/progress/ws", nil)

	h.Uploads(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
