package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/services"
)

// AdminHandler manages the global MCP server catalog. Routes using it are
// mounted behind the admin-only middleware.
type AdminHandler struct {
	mcpSvc *services.MCPService
}

func NewAdminHandler(mcpSvc *services.MCPService) *AdminHandler {
	return &AdminHandler{mcpSvc: mcpSvc}
}

type mcpServerRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Transport   string  `json:"transport"`
	Command     *string `json:"command"`
	Args        *string `json:"args"`
	URL         *string `json:"url"`
	EnvVars     *string `json:"env_vars"`
	Enabled     *bool   `json:"is_enabled"`
}

func (req *mcpServerRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	switch req.Transport {
	case domain.MCPTransportStdio:
		if req.Command == nil || *req.Command == "" {
			return "stdio transport requires a command"
		}
	case domain.MCPTransportSSE:
		if req.URL == nil || *req.URL == "" {
			return "sse transport requires a url"
		}
	default:
		return "transport must be 'stdio' or 'sse'"
	}
	return ""
}

func (req *mcpServerRequest) toDomain(id string) *domain.MCPServer {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &domain.MCPServer{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Transport:   req.Transport,
		Command:     req.Command,
		Args:        req.Args,
		URL:         req.URL,
		EnvVars:     req.EnvVars,
		Enabled:     enabled,
	}
}

func (h *AdminHandler) ListMCPServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.mcpSvc.List(r.Context())
	if err != nil {
		respondError(w, "failed to list mcp servers", http.StatusInternalServerError)
		return
	}
	respondJSON(w, servers, http.StatusOK)
}

func (h *AdminHandler) GetMCPServer(w http.ResponseWriter, r *http.Request) {
	srv, err := h.mcpSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err, "mcp server not found")
		return
	}
	respondJSON(w, srv, http.StatusOK)
}

func (h *AdminHandler) CreateMCPServer(w http.ResponseWriter, r *http.Request) {
	var req mcpServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, msg, http.StatusBadRequest)
		return
	}

	srv, err := h.mcpSvc.Create(r.Context(), req.toDomain(""))
	if err != nil {
		respondError(w, "failed to create mcp server", http.StatusInternalServerError)
		return
	}
	respondJSON(w, srv, http.StatusCreated)
}

func (h *AdminHandler) UpdateMCPServer(w http.ResponseWriter, r *http.Request) {
	var req mcpServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, msg, http.StatusBadRequest)
		return
	}

	srv, err := h.mcpSvc.Update(r.Context(), req.toDomain(chi.URLParam(r, "id")))
	if err != nil {
		respondStoreError(w, err, "mcp server not found")
		return
	}
	respondJSON(w, srv, http.StatusOK)
}

func (h *AdminHandler) DeleteMCPServer(w http.ResponseWriter, r *http.Request) {
	if err := h.mcpSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err, "mcp server not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
