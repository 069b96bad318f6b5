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

const conversationColumns = `id, user_id, title, provider, model_name, image_provider,
		image_model, system_prompt_override, deep_thinking, share_token, created_at, updated_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := row.Scan(
		&conv.ID, &conv.UserID, &conv.Title, &conv.Provider, &conv.ModelName,
		&conv.ImageProvider, &conv.ImageModel, &conv.SystemPromptOverride,
		&conv.DeepThinking, &conv.ShareToken, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

// CreateConversation inserts a new conversation owned by a user.
func (s *Store) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv.ID == "" {
		conv.ID = id.NewConversation()
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now

	query := `
		INSERT INTO conversations (id, user_id, title, provider, model_name, image_provider,
			image_model, system_prompt_override, deep_thinking, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.conn(ctx).Exec(ctx, query,
		conv.ID, conv.UserID, conv.Title, conv.Provider, conv.ModelName,
		conv.ImageProvider, conv.ImageModel, conv.SystemPromptOverride,
		conv.DeepThinking, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID for its owner.
func (s *Store) GetConversation(ctx context.Context, convID, userID string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1 AND user_id = $2`

	conv, err := scanConversation(s.conn(ctx).QueryRow(ctx, query, convID, userID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, err
}

// GetConversationByShareToken retrieves a shared conversation regardless of owner.
func (s *Store) GetConversationByShareToken(ctx context.Context, token string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE share_token = $1`

	conv, err := scanConversation(s.conn(ctx).QueryRow(ctx, query, token))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get conversation by share token: %w", err)
	}
	return conv, err
}

// ListConversations returns a user's conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := s.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// UpdateConversation updates a conversation's mutable fields for its owner.
func (s *Store) UpdateConversation(ctx context.Context, conv *domain.Conversation) error {
	conv.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE conversations
		SET title = $3, provider = $4, model_name = $5, image_provider = $6,
			image_model = $7, system_prompt_override = $8, deep_thinking = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2`

	result, err := s.conn(ctx).Exec(ctx, query,
		conv.ID, conv.UserID, conv.Title, conv.Provider, conv.ModelName,
		conv.ImageProvider, conv.ImageModel, conv.SystemPromptOverride,
		conv.DeepThinking, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteConversation deletes a conversation and, by cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, convID, userID string) error {
	result, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`, convID, userID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetShareToken sets the share token if none is set yet. Returns ErrConflict
// when a concurrent request already set one; the caller re-reads the winner.
func (s *Store) SetShareToken(ctx context.Context, convID, userID, token string) error {
	result, err := s.conn(ctx).Exec(ctx, `
		UPDATE conversations SET share_token = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND share_token IS NULL`,
		convID, userID, token)
	if err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RemoveShareToken revokes sharing. Reports whether a token was removed.
func (s *Store) RemoveShareToken(ctx context.Context, convID, userID string) (bool, error) {
	result, err := s.conn(ctx).Exec(ctx, `
		UPDATE conversations SET share_token = NULL, updated_at = now()
		WHERE id = $1 AND user_id = $2 AND share_token IS NOT NULL`,
		convID, userID)
	if err != nil {
		return false, fmt.Errorf("remove share token: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
