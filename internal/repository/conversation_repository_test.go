package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexvault/lexvault/internal/models"
)

func TestCreateConversationTruncatesTitle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	userID := uuid.New()
	long := strings.Repeat("q", 150)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversations`)).
		WithArgs(sqlmock.AnyArg(), userID, strings.Repeat("q", 100), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := repo.CreateConversation(context.Background(), userID, long)
	require.NoError(t, err)
	assert.Len(t, conv.Title, 100)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateConversationTitleKeepsRunesWhole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	userID := uuid.New()
	// The second byte of the leading section sign straddles the cut point.
	first := strings.Repeat("q", 99) + "§§"

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversations`)).
		WithArgs(sqlmock.AnyArg(), userID, strings.Repeat("q", 99), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv, err := repo.CreateConversation(context.Background(), userID, first)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(conv.Title))
	assert.Equal(t, strings.Repeat("q", 99), conv.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteConversation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	convID := uuid.New()
	userID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversations WHERE id = $1 AND user_id = $2`)).
		WithArgs(convID, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteConversation(context.Background(), convID, userID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteConversationNotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM conversations WHERE id = $1 AND user_id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteConversation(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetConversationNotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM conversations WHERE id = $1 AND user_id = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetConversation(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateMessageWithCitations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	convID := uuid.New()
	citations := []models.Citation{
		{DocumentName: "nda.pdf", ChunkContent: "snippet", Similarity: 0.9, ChunkIndex: 2},
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs(sqlmock.AnyArg(), convID, models.RoleAssistant, "answer", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg, err := repo.CreateMessage(context.Background(), convID, models.RoleAssistant, "answer", citations)
	require.NoError(t, err)

	var stored []models.Citation
	require.NoError(t, json.Unmarshal(msg.Citations, &stored))
	assert.Equal(t, citations, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageWithoutCitations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	convID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs(sqlmock.AnyArg(), convID, models.RoleUser, "question", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg, err := repo.CreateMessage(context.Background(), convID, models.RoleUser, "question", nil)
	require.NoError(t, err)
	assert.Nil(t, msg.Citations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMessagesChronological(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepository(db)

	convID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "role", "content"}).
		AddRow(uuid.New(), convID, models.RoleUser, "first").
		AddRow(uuid.New(), convID, models.RoleAssistant, "second")

	mock.ExpectQuery(`ORDER BY created_at ASC`).
		WithArgs(convID, 20).
		WillReturnRows(rows)

	msgs, err := repo.GetMessages(context.Background(), convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}
