package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/projecthub-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestBatchStatusCodes(t *testing.T) {
	cases := []struct {
		name      string
		succeeded int
		failed    int
		want      int
	}{
		{"all ok", 3, 0, http.StatusCreated},
		{"partial", 3, 2, http.StatusMultiStatus},
		{"all failed", 0, 2, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := newContext()
			Batch(c, []string{}, tc.succeeded, tc.failed)
			assert.Equal(t, tc.want, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			meta := body["meta"].(map[string]interface{})
			assert.EqualValues(t, tc.failed, meta["failed"])
		})
	}
}

func TestErrorUsesTypedStatus(t *testing.T) {
	c, w := newContext()
	Error(c, appErrors.Clone(appErrors.ErrValidation, "empty file"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "empty file")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
