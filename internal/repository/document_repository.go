package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lexvault/lexvault/internal/models"
)

// DocumentRepository handles document data access. Every read and mutation is
// scoped to the owning user; there is no unscoped access path.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateDocument creates a new document record in processing state
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = models.StatusProcessing
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	query := `
		INSERT INTO documents (
			id, user_id, filename, file_type, status, error_message,
			chunk_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.Status,
		doc.ErrorMessage, doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetDocument retrieves a document owned by userID
func (r *DocumentRepository) GetDocument(ctx context.Context, id, userID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	query := `
		SELECT id, user_id, filename, file_type, status, error_message,
		       chunk_count, created_at, updated_at
		FROM documents
		WHERE id = $1 AND user_id = $2`

	err := r.db.GetContext(ctx, &doc, query, id, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// ListDocuments retrieves all documents owned by userID, newest first
func (r *DocumentRepository) ListDocuments(ctx context.Context, userID uuid.UUID) ([]*models.Document, error) {
	var docs []*models.Document
	query := `
		SELECT id, user_id, filename, file_type, status, error_message,
		       chunk_count, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &docs, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	return docs, nil
}

// DeleteDocument removes a document owned by userID. Chunks cascade via the
// foreign key.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM documents WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkReady transitions a document to ready with its final chunk count
func (r *DocumentRepository) MarkReady(ctx context.Context, id uuid.UUID, chunkCount int) error {
	query := `
		UPDATE documents
		SET status = $1, chunk_count = $2, error_message = '', updated_at = $3
		WHERE id = $4`

	_, err := r.db.ExecContext(ctx, query, models.StatusReady, chunkCount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark document ready: %w", err)
	}
	return nil
}

// MarkFailed transitions a document to error with a human-readable message
func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE documents
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4`

	_, err := r.db.ExecContext(ctx, query, models.StatusError, message, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	return nil
}

// LookupNames resolves document IDs to display filenames in one query.
// IDs missing from the result are the caller's problem; no error is raised
// for partial misses.
func (r *DocumentRepository) LookupNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.db.QueryxContext(ctx,
		`SELECT id, filename FROM documents WHERE id = ANY($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up document names: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			id       uuid.UUID
			filename string
		)
		if err := rows.Scan(&id, &filename); err != nil {
			return nil, fmt.Errorf("failed to scan document name: %w", err)
		}
		names[id] = filename
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading document names: %w", err)
	}

	return names, nil
}

// FailStuckProcessing marks documents stuck in processing beyond the deadline
// as failed. Returns the number of documents transitioned.
func (r *DocumentRepository) FailStuckProcessing(ctx context.Context, deadline time.Duration) (int64, error) {
	query := `
		UPDATE documents
		SET status = $1, error_message = 'Processing timed out', updated_at = $2
		WHERE status = $3 AND updated_at < $4`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, models.StatusError, now, models.StatusProcessing, now.Add(-deadline))
	if err != nil {
		return 0, fmt.Errorf("failed to fail stuck documents: %w", err)
	}

	return result.RowsAffected()
}
