package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(header string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, Value(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareKeepsCallerID(t *testing.T) {
	w := serve("req-123")
	assert.Equal(t, "req-123", w.Header().Get(headerKey))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	w := serve(strings.Repeat("x", maxLength+1))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(headerKey))
}
