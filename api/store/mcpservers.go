package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/shared/id"
)

const mcpServerColumns = "id, name, description, transport, command, args, url, env_vars, is_enabled, created_at"

func scanMCPServer(row pgx.Row) (*domain.MCPServer, error) {
	srv := &domain.MCPServer{}
	err := row.Scan(
		&srv.ID, &srv.Name, &srv.Description, &srv.Transport, &srv.Command,
		&srv.Args, &srv.URL, &srv.EnvVars, &srv.Enabled, &srv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return srv, nil
}

// CreateMCPServer registers a new MCP server config.
func (s *Store) CreateMCPServer(ctx context.Context, srv *domain.MCPServer) (*domain.MCPServer, error) {
	if srv.ID == "" {
		srv.ID = id.NewMCPServer()
	}

	query := `
		INSERT INTO mcp_servers (id, name, description, transport, command, args, url, env_vars, is_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + mcpServerColumns

	created, err := scanMCPServer(s.conn(ctx).QueryRow(ctx, query,
		srv.ID, srv.Name, srv.Description, srv.Transport, srv.Command,
		srv.Args, srv.URL, srv.EnvVars, srv.Enabled))
	if err != nil {
		return nil, fmt.Errorf("create mcp server: %w", err)
	}
	return created, nil
}

// GetMCPServer retrieves an MCP server config by ID.
func (s *Store) GetMCPServer(ctx context.Context, srvID string) (*domain.MCPServer, error) {
	query := `SELECT ` + mcpServerColumns + ` FROM mcp_servers WHERE id = $1`

	srv, err := scanMCPServer(s.conn(ctx).QueryRow(ctx, query, srvID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get mcp server: %w", err)
	}
	return srv, err
}

// ListMCPServers returns all registered MCP servers, sorted by name.
func (s *Store) ListMCPServers(ctx context.Context) ([]*domain.MCPServer, error) {
	return s.listMCPServers(ctx, `SELECT `+mcpServerColumns+` FROM mcp_servers ORDER BY name ASC`)
}

func (s *Store) listMCPServers(ctx context.Context, query string, args ...any) ([]*domain.MCPServer, error) {
	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list mcp servers: %w", err)
	}
	defer rows.Close()

	var servers []*domain.MCPServer
	for rows.Next() {
		srv, err := scanMCPServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mcp server: %w", err)
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// UpdateMCPServer replaces an MCP server config.
func (s *Store) UpdateMCPServer(ctx context.Context, srv *domain.MCPServer) (*domain.MCPServer, error) {
	query := `
		UPDATE mcp_servers
		SET name = $2, description = $3, transport = $4, command = $5,
			args = $6, url = $7, env_vars = $8, is_enabled = $9
		WHERE id = $1
		RETURNING ` + mcpServerColumns

	updated, err := scanMCPServer(s.conn(ctx).QueryRow(ctx, query,
		srv.ID, srv.Name, srv.Description, srv.Transport, srv.Command,
		srv.Args, srv.URL, srv.EnvVars, srv.Enabled))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update mcp server: %w", err)
	}
	return updated, nil
}

// DeleteMCPServer removes an MCP server config.
func (s *Store) DeleteMCPServer(ctx context.Context, srvID string) error {
	result, err := s.conn(ctx).Exec(ctx, `DELETE FROM mcp_servers WHERE id = $1`, srvID)
	if err != nil {
		return fmt.Errorf("delete mcp server: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetConversationMCPServers replaces the set of MCP servers attached to a
// conversation.
func (s *Store) SetConversationMCPServers(ctx context.Context, convID string, serverIDs []string) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).Exec(ctx,
			`DELETE FROM conversation_mcp_servers WHERE conversation_id = $1`, convID)
		if err != nil {
			return fmt.Errorf("clear conversation mcp servers: %w", err)
		}

		for _, serverID := range serverIDs {
			_, err := s.conn(ctx).Exec(ctx,
				`INSERT INTO conversation_mcp_servers (conversation_id, mcp_server_id) VALUES ($1, $2)`,
				convID, serverID)
			if err != nil {
				return fmt.Errorf("attach mcp server: %w", err)
			}
		}
		return nil
	})
}

// GetConversationMCPServers returns the MCP servers attached to a conversation.
func (s *Store) GetConversationMCPServers(ctx context.Context, convID string) ([]*domain.MCPServer, error) {
	query := `
		SELECT s.id, s.name, s.description, s.transport, s.command, s.args, s.url,
			s.env_vars, s.is_enabled, s.created_at
		FROM mcp_servers s
		INNER JOIN conversation_mcp_servers cms ON s.id = cms.mcp_server_id
		WHERE cms.conversation_id = $1
		ORDER BY s.name ASC`

	return s.listMCPServers(ctx, query, convID)
}
