package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/observability"
)

// newUploadRouter wires only the validation path; requests that pass
// validation are not exercised here because they reach the database.
func newUploadRouter(maxBytes int64) *gin.Engine {
	handler := NewDocumentHandler(nil, nil, maxBytes, observability.NewNoopLogger())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.New())
		c.Next()
	})
	router.POST("/documents", handler.Upload)
	return router
}

func multipartUpload(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestUploadMissingFile(t *testing.T) {
	router := newUploadRouter(1 << 20)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadUnsupportedFileType(t *testing.T) {
	router := newUploadRouter(1 << 20)

	body, contentType := multipartUpload(t, "image.png", []byte("binary"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported file type")
}

func TestUploadTooLarge(t *testing.T) {
	router := newUploadRouter(10)

	body, contentType := multipartUpload(t, "big.txt", bytes.Repeat([]byte("a"), 100))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadCorruptPDF(t *testing.T) {
	router := newUploadRouter(1 << 20)

	body, contentType := multipartUpload(t, "broken.pdf", []byte("not a pdf at all"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetDocumentInvalidID(t *testing.T) {
	handler := NewDocumentHandler(nil, nil, 1<<20, observability.NewNoopLogger())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.New())
		c.Next()
	})
	router.GET("/documents/:id", handler.Get)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
