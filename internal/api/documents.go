package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/ingest"
	"github.com/lexvault/lexvault/internal/models"
	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/processor"
	"github.com/lexvault/lexvault/internal/repository"
)

// processTimeout bounds background ingestion of a single document
const processTimeout = 10 * time.Minute

// DocumentHandler handles document upload and management endpoints
type DocumentHandler struct {
	documents      *repository.DocumentRepository
	pipeline       *ingest.Pipeline
	maxUploadBytes int64
	logger         observability.Logger
}

// NewDocumentHandler creates a new document handler instance
func NewDocumentHandler(documents *repository.DocumentRepository, pipeline *ingest.Pipeline, maxUploadBytes int64, logger observability.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents:      documents,
		pipeline:       pipeline,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Upload handles POST /api/v1/documents. The file is validated and its text
// extracted synchronously; chunking and embedding continue in the background
// while the client polls the document status.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}

	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	if !processor.SupportedFileType(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type, expected pdf, txt or markdown"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Warn("Failed to close upload", map[string]interface{}{"error": err.Error()})
		}
	}()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds the upload size limit"})
		return
	}

	text, err := processor.ExtractText(data, fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract text from file"})
		return
	}

	doc := &models.Document{
		UserID:   userID,
		Filename: fileHeader.Filename,
		FileType: processor.FileExtension(fileHeader.Filename),
	}

	if err := h.documents.CreateDocument(c.Request.Context(), doc); err != nil {
		h.logger.Error("Failed to create document", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save document"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if err := h.pipeline.Process(ctx, doc.ID, text); err != nil {
			h.logger.Error("Document processing failed", map[string]interface{}{
				"document_id": doc.ID.String(),
				"error":       err.Error(),
			})
		}
	}()

	c.JSON(http.StatusCreated, doc)
}

// List handles GET /api/v1/documents
func (h *DocumentHandler) List(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	docs, err := h.documents.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list documents", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"count":     len(docs),
	})
}

// Get handles GET /api/v1/documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}

	doc, err := h.documents.GetDocument(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.logger.Error("Failed to get document", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get document"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Delete handles DELETE /api/v1/documents/:id. Chunks cascade away with
// the document row.
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document ID"})
		return
	}

	if err := h.documents.DeleteDocument(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		h.logger.Error("Failed to delete document", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}
