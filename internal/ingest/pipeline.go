// Package ingest drives document processing: extracted text is chunked,
// embedded in small concurrent batches and committed to storage.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/metrics"
	"github.com/lexvault/lexvault/internal/models"
	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/processor"
)

// Embedder produces embeddings for chunk content
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore persists embedded chunks
type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []*models.Chunk) error
}

// DocumentStatusStore records a document's terminal ingestion status
type DocumentStatusStore interface {
	MarkReady(ctx context.Context, id uuid.UUID, chunkCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Pipeline processes a document's text into embedded, stored chunks.
//
// Chunks are embedded in batches; calls within a batch run concurrently and
// the batch commits only once every embedding in it succeeded. Batches run
// sequentially. On any failure the pipeline stops, leaves earlier committed
// batches in place and marks the document failed. A later re-upload starts
// clean because the failed document's chunks cascade away on delete.
type Pipeline struct {
	chunker   *processor.Chunker
	embedder  Embedder
	chunks    ChunkStore
	documents DocumentStatusStore
	batchSize int
	logger    observability.Logger
}

// NewPipeline creates an ingestion pipeline
func NewPipeline(chunker *processor.Chunker, embedder Embedder, chunks ChunkStore, documents DocumentStatusStore, batchSize int, logger observability.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		chunks:    chunks,
		documents: documents,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Process chunks, embeds and stores a document's text, then marks the
// document ready. Any failure marks the document failed with the cause.
func (p *Pipeline) Process(ctx context.Context, documentID uuid.UUID, text string) error {
	start := time.Now()

	err := p.process(ctx, documentID, text)
	if err != nil {
		metrics.DocumentsProcessed.WithLabelValues(models.StatusError).Inc()
		if markErr := p.documents.MarkFailed(ctx, documentID, err.Error()); markErr != nil {
			p.logger.Error("Failed to mark document as failed", map[string]interface{}{
				"document_id": documentID.String(),
				"error":       markErr.Error(),
			})
		}
		return err
	}

	metrics.DocumentsProcessed.WithLabelValues(models.StatusReady).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (p *Pipeline) process(ctx context.Context, documentID uuid.UUID, text string) error {
	pieces := p.chunker.Split(text)
	if len(pieces) == 0 {
		return fmt.Errorf("document contains no extractable text")
	}

	p.logger.Info("Processing document", map[string]interface{}{
		"document_id": documentID.String(),
		"chunks":      len(pieces),
	})

	for offset := 0; offset < len(pieces); offset += p.batchSize {
		end := offset + p.batchSize
		if end > len(pieces) {
			end = len(pieces)
		}

		if err := p.processBatch(ctx, documentID, pieces[offset:end], offset); err != nil {
			return err
		}
	}

	if err := p.documents.MarkReady(ctx, documentID, len(pieces)); err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}

	return nil
}

// processBatch embeds every chunk of the batch concurrently, waits for all of
// them and only then inserts. A single embedding failure discards the whole
// batch.
func (p *Pipeline) processBatch(ctx context.Context, documentID uuid.UUID, contents []string, indexOffset int) error {
	chunks := make([]*models.Chunk, len(contents))
	errs := make([]error, len(contents))

	var wg sync.WaitGroup
	for i, content := range contents {
		wg.Add(1)
		go func(i int, content string) {
			defer wg.Done()

			embedding, err := p.embedder.EmbedText(ctx, content)
			if err != nil {
				metrics.EmbeddingsGenerated.WithLabelValues("error").Inc()
				errs[i] = err
				return
			}
			metrics.EmbeddingsGenerated.WithLabelValues("success").Inc()

			chunks[i] = &models.Chunk{
				DocumentID: documentID,
				ChunkIndex: indexOffset + i,
				Content:    content,
				Embedding:  embedding,
			}
		}(i, content)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", indexOffset+i, err)
		}
	}

	if err := p.chunks.InsertBatch(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunk batch at %d: %w", indexOffset, err)
	}

	metrics.ChunksCreated.Add(float64(len(chunks)))
	return nil
}
