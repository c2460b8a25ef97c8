package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/models"
)

func TestCreateDocumentDefaults(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	userID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO documents`)).
		WithArgs(sqlmock.AnyArg(), userID, "contract.pdf", "pdf", models.StatusProcessing,
			"", 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	doc := &models.Document{UserID: userID, Filename: "contract.pdf", FileType: "pdf"}
	err := repo.CreateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, models.StatusProcessing, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentScopedToOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	id, userID := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "user_id", "filename", "status", "chunk_count"}).
		AddRow(id, userID, "contract.pdf", models.StatusReady, 12)

	mock.ExpectQuery(`SELECT .+ FROM documents\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs(id, userID).
		WillReturnRows(rows)

	doc, err := repo.GetDocument(context.Background(), id, userID)
	require.NoError(t, err)
	assert.Equal(t, "contract.pdf", doc.Filename)
	assert.Equal(t, 12, doc.ChunkCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentNotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetDocument(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDocumentNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	id, userID := uuid.New(), uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE id = $1 AND user_id = $2`)).
		WithArgs(id, userID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteDocument(context.Background(), id, userID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReady(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents`)).
		WithArgs(models.StatusReady, 7, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReady(context.Background(), id, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents`)).
		WithArgs(models.StatusError, "embedding failed", sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), id, "embedding failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupNames(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	id1, id2 := uuid.New(), uuid.New()
	rows := sqlmock.NewRows([]string{"id", "filename"}).
		AddRow(id1, "nda.pdf").
		AddRow(id2, "lease.md")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, filename FROM documents WHERE id = ANY($1)`)).
		WillReturnRows(rows)

	names, err := repo.LookupNames(context.Background(), []uuid.UUID{id1, id2})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{id1: "nda.pdf", id2: "lease.md"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupNamesEmptyInput(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewDocumentRepository(db)

	names, err := repo.LookupNames(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestFailStuckProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE documents`)).
		WithArgs(models.StatusError, sqlmock.AnyArg(), models.StatusProcessing, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.FailStuckProcessing(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
