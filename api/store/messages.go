package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/shared/id"
)

const messageColumns = "id, conversation_id, role, content, tool_calls, tool_call_id, token_count, created_at"

// CreateMessage inserts a message. created_at comes from the database clock
// so insertion order and chronological order agree within a conversation.
func (s *Store) CreateMessage(ctx context.Context, convID, role, content string, toolCalls, toolCallID *string, tokenCount *int64) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             id.NewMessage(),
		ConversationID: convID,
		Role:           role,
		Content:        content,
		ToolCalls:      toolCalls,
		ToolCallID:     toolCallID,
		TokenCount:     tokenCount,
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, tool_calls, tool_call_id, token_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := s.conn(ctx).QueryRow(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content,
		msg.ToolCalls, msg.ToolCallID, msg.TokenCount).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, msgID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg := &domain.Message{}
	err := s.conn(ctx).QueryRow(ctx, query, msgID).Scan(
		&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
		&msg.ToolCalls, &msg.ToolCallID, &msg.TokenCount, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a conversation's messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, convID string, limit, offset int) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.conn(ctx).Query(ctx, query, convID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ToolCalls, &msg.ToolCallID, &msg.TokenCount, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ListRecentMessages returns the most recent limit messages of a
// conversation, still in chronological order.
func (s *Store) ListRecentMessages(ctx context.Context, convID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`

	rows, err := s.conn(ctx).Query(ctx, query, convID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		msg := &domain.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ToolCalls, &msg.ToolCallID, &msg.TokenCount, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// CountMessages counts a conversation's messages.
func (s *Store) CountMessages(ctx context.Context, convID string) (int64, error) {
	var count int64
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`, convID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// UpdateMessageContent replaces a message's content.
func (s *Store) UpdateMessageContent(ctx context.Context, msgID, content string) error {
	result, err := s.conn(ctx).Exec(ctx,
		`UPDATE messages SET content = $2 WHERE id = $1`, msgID, content)
	if err != nil {
		return fmt.Errorf("update message content: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMessagesAfter deletes every message of the conversation created after
// the given message. Returns the number of rows deleted.
func (s *Store) DeleteMessagesAfter(ctx context.Context, convID, afterMsgID string) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE conversation_id = $1
		  AND created_at > (SELECT created_at FROM messages WHERE id = $2)`

	result, err := s.conn(ctx).Exec(ctx, query, convID, afterMsgID)
	if err != nil {
		return 0, fmt.Errorf("delete messages after: %w", err)
	}
	return result.RowsAffected(), nil
}

// TouchConversation bumps updated_at so conversation lists sort by activity.
func (s *Store) TouchConversation(ctx context.Context, convID string) error {
	_, err := s.conn(ctx).Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, convID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}
