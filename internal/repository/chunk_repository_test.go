package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/models"
)

func TestInsertBatchSingleStatement(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	docID := uuid.New()
	chunks := []*models.Chunk{
		{DocumentID: docID, ChunkIndex: 0, Content: "first", Embedding: []float32{0.1, 0.2}},
		{DocumentID: docID, ChunkIndex: 1, Content: "second", Embedding: []float32{0.3, 0.4}},
	}

	// Both rows go through one multi-row insert.
	mock.ExpectExec(regexp.QuoteMeta(
		`VALUES ($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12)`)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.InsertBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, chunks[0].ID)
	assert.NotEqual(t, uuid.Nil, chunks[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmpty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewChunkRepository(db)

	assert.NoError(t, repo.InsertBatch(context.Background(), nil))
}

func TestSearchSimilarScopedAndRanked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	userID := uuid.New()
	docID := uuid.New()

	rows := sqlmock.NewRows([]string{"document_id", "content", "chunk_index", "similarity"}).
		AddRow(docID, "most relevant", 3, 0.92).
		AddRow(docID, "less relevant", 0, 0.81)

	mock.ExpectQuery(`SELECT c\.document_id, c\.content, c\.chunk_index,\s+1 - \(c\.embedding <=> \$1\) AS similarity`).
		WithArgs(sqlmock.AnyArg(), userID, 5).
		WillReturnRows(rows)

	matches, err := repo.SearchSimilar(context.Background(), []float32{0.1, 0.2}, 5, userID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Ranking comes straight from the database ordering.
	assert.Equal(t, "most relevant", matches[0].Content)
	assert.Equal(t, 3, matches[0].ChunkIndex)
	assert.InDelta(t, 0.92, matches[0].Similarity, 1e-9)
	assert.Equal(t, "less relevant", matches[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchSimilarDefaultsMatchCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChunkRepository(db)

	userID := uuid.New()
	mock.ExpectQuery(`SELECT c\.document_id`).
		WithArgs(sqlmock.AnyArg(), userID, 5).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "content", "chunk_index", "similarity"}))

	matches, err := repo.SearchSimilar(context.Background(), []float32{0.5}, 0, userID)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}
