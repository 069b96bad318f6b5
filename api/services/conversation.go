// Package services holds the domain services between the HTTP handlers and
// the store.
package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/store"
)

// ConversationService owns conversation CRUD, the per-conversation workspace
// directory, and share tokens.
type ConversationService struct {
	store   *store.Store
	dataDir string
}

func NewConversationService(s *store.Store, dataDir string) *ConversationService {
	return &ConversationService{store: s, dataDir: dataDir}
}

func (svc *ConversationService) workspaceDir(convID string) string {
	return filepath.Join(svc.dataDir, "conversations", convID)
}

// Create inserts a conversation and prepares its workspace directory.
func (svc *ConversationService) Create(ctx context.Context, conv *domain.Conversation) error {
	if conv.Title == "" {
		conv.Title = "New Conversation"
	}
	if err := svc.store.CreateConversation(ctx, conv); err != nil {
		return err
	}
	if err := os.MkdirAll(svc.workspaceDir(conv.ID), 0o755); err != nil {
		slog.Warn("workspace dir create failed", "conversation_id", conv.ID, "error", err)
	}
	return nil
}

func (svc *ConversationService) Get(ctx context.Context, convID, userID string) (*domain.Conversation, error) {
	return svc.store.GetConversation(ctx, convID, userID)
}

func (svc *ConversationService) List(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return svc.store.ListConversations(ctx, userID)
}

func (svc *ConversationService) Update(ctx context.Context, conv *domain.Conversation) error {
	return svc.store.UpdateConversation(ctx, conv)
}

// Delete removes the conversation row (messages cascade) and its workspace
// directory.
func (svc *ConversationService) Delete(ctx context.Context, convID, userID string) error {
	if err := svc.store.DeleteConversation(ctx, convID, userID); err != nil {
		return err
	}
	if err := os.RemoveAll(svc.workspaceDir(convID)); err != nil {
		slog.Warn("workspace dir remove failed", "conversation_id", convID, "error", err)
	}
	return nil
}

func (svc *ConversationService) ListMessages(ctx context.Context, convID string, limit, offset int) ([]*domain.Message, int64, error) {
	messages, err := svc.store.ListMessages(ctx, convID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := svc.store.CountMessages(ctx, convID)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// Share returns the conversation's share token, minting one if needed. A
// concurrent mint loses gracefully: the winner's token is returned.
func (svc *ConversationService) Share(ctx context.Context, convID, userID string) (string, error) {
	conv, err := svc.store.GetConversation(ctx, convID, userID)
	if err != nil {
		return "", err
	}
	if conv.ShareToken != nil {
		return *conv.ShareToken, nil
	}

	token, err := generateShareToken()
	if err != nil {
		return "", err
	}

	err = svc.store.SetShareToken(ctx, convID, userID, token)
	if errors.Is(err, domain.ErrConflict) {
		conv, err := svc.store.GetConversation(ctx, convID, userID)
		if err != nil {
			return "", err
		}
		if conv.ShareToken == nil {
			return "", fmt.Errorf("share token vanished for conversation %s", convID)
		}
		return *conv.ShareToken, nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// Revoke removes the share token. Reports whether one existed.
func (svc *ConversationService) Revoke(ctx context.Context, convID, userID string) (bool, error) {
	return svc.store.RemoveShareToken(ctx, convID, userID)
}

// GetShared resolves a public share token to its conversation.
func (svc *ConversationService) GetShared(ctx context.Context, token string) (*domain.Conversation, error) {
	return svc.store.GetConversationByShareToken(ctx, token)
}

func generateShareToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
