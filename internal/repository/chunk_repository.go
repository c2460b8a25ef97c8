package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/lexvault/lexvault/internal/models"
)

// ChunkRepository handles chunk storage and similarity search
type ChunkRepository struct {
	db *sqlx.DB
}

// NewChunkRepository creates a new chunk repository
func NewChunkRepository(db *sqlx.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// InsertBatch stores a batch of embedded chunks in a single multi-row insert.
// The insert is atomic: either every chunk in the batch is committed or none
// is. Chunks from previously committed batches are unaffected.
func (r *ChunkRepository) InsertBatch(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []interface{}
	)
	now := time.Now()

	for i, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}

		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content,
			pgvector.NewVector(chunk.Embedding), chunk.CreatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO chunks (id, document_id, chunk_index, content, embedding, created_at)
		VALUES %s`, strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert chunk batch: %w", err)
	}

	return nil
}

// SearchSimilar returns the matchCount most similar chunks for the query
// embedding, restricted to documents owned by userID. Rows come back ranked
// by cosine similarity descending; callers must not re-sort them.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, embedding []float32, matchCount int, userID uuid.UUID) ([]models.ChunkMatch, error) {
	if matchCount <= 0 {
		matchCount = 5
	}

	query := `
		SELECT c.document_id, c.content, c.chunk_index,
		       1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.user_id = $2
		ORDER BY c.embedding <=> $1
		LIMIT $3`

	var matches []models.ChunkMatch
	err := r.db.SelectContext(ctx, &matches, query, pgvector.NewVector(embedding), userID, matchCount)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	return matches, nil
}

// CountByDocument returns the number of stored chunks for a document
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
