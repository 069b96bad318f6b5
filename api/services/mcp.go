package services

import (
	"context"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/store"
)

// MCPService manages the MCP server catalog and conversation attachments.
type MCPService struct {
	store *store.Store
}

func NewMCPService(s *store.Store) *MCPService {
	return &MCPService{store: s}
}

func (svc *MCPService) Create(ctx context.Context, srv *domain.MCPServer) (*domain.MCPServer, error) {
	return svc.store.CreateMCPServer(ctx, srv)
}

func (svc *MCPService) Get(ctx context.Context, srvID string) (*domain.MCPServer, error) {
	return svc.store.GetMCPServer(ctx, srvID)
}

func (svc *MCPService) List(ctx context.Context) ([]*domain.MCPServer, error) {
	return svc.store.ListMCPServers(ctx)
}

func (svc *MCPService) Update(ctx context.Context, srv *domain.MCPServer) (*domain.MCPServer, error) {
	return svc.store.UpdateMCPServer(ctx, srv)
}

func (svc *MCPService) Delete(ctx context.Context, srvID string) error {
	return svc.store.DeleteMCPServer(ctx, srvID)
}

func (svc *MCPService) SetForConversation(ctx context.Context, convID string, serverIDs []string) error {
	return svc.store.SetConversationMCPServers(ctx, convID, serverIDs)
}

func (svc *MCPService) GetForConversation(ctx context.Context, convID string) ([]*domain.MCPServer, error) {
	return svc.store.GetConversationMCPServers(ctx, convID)
}
