package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lexvault/lexvault/internal/models"
)

const conversationTitleMax = 100

// ConversationRepository handles conversation and message persistence
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation starts a new conversation for a user. The title is
// derived from the first message, truncated to 100 characters.
func (r *ConversationRepository) CreateConversation(ctx context.Context, userID uuid.UUID, firstMessage string) (*models.Conversation, error) {
	title := firstMessage
	if len(title) > conversationTitleMax {
		cut := conversationTitleMax
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}

	conv := &models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation fetches a conversation owned by the given user
func (r *ConversationRepository) GetConversation(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	query := `SELECT * FROM conversations WHERE id = $1 AND user_id = $2`
	err := r.db.GetContext(ctx, &conv, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// DeleteConversation removes a conversation owned by the given user; its
// messages are removed by the foreign key cascade.
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM conversations WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
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

// ListConversations returns a user's conversations, most recently active first
func (r *ConversationRepository) ListConversations(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	query := `SELECT * FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`
	if err := r.db.SelectContext(ctx, &convs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// CreateMessage appends a message to a conversation. Citations may be nil
// for user messages; for assistant messages they record the retrieval
// evidence behind the answer.
func (r *ConversationRepository) CreateMessage(ctx context.Context, conversationID uuid.UUID, role, content string, citations []models.Citation) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if len(citations) > 0 {
		blob, err := json.Marshal(citations)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal citations: %w", err)
		}
		msg.Citations = blob
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, citations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Citations, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	return msg, nil
}

// GetMessages returns the most recent messages of a conversation in
// chronological order, capped at limit.
func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT * FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`

	var msgs []*models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, conversationID, limit); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return msgs, nil
}

// TouchConversation bumps a conversation's updated_at so recently used
// conversations sort first.
func (r *ConversationRepository) TouchConversation(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, time.Now(), id); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}
