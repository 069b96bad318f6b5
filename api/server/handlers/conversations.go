package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/services"
)

// ContainerTeardown is what the conversation handler needs to force a fresh
// container boot after a config change: drop the hub's container sender and
// stop the running sandbox.
type ContainerTeardown interface {
	RemoveContainer(conversationID string)
	StopContainer(ctx context.Context, conversationID string) error
}

type ConversationHandler struct {
	convSvc  *services.ConversationService
	mcpSvc   *services.MCPService
	teardown ContainerTeardown
}

func NewConversationHandler(convSvc *services.ConversationService, mcpSvc *services.MCPService, teardown ContainerTeardown) *ConversationHandler {
	return &ConversationHandler{convSvc: convSvc, mcpSvc: mcpSvc, teardown: teardown}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req struct {
		Title                *string `json:"title"`
		Provider             *string `json:"provider"`
		ModelName            *string `json:"model_name"`
		ImageProvider        *string `json:"image_provider"`
		ImageModel           *string `json:"image_model"`
		SystemPromptOverride *string `json:"system_prompt_override"`
		DeepThinking         *bool   `json:"deep_thinking"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	conv := &domain.Conversation{
		UserID:               userID,
		Provider:             req.Provider,
		ModelName:            req.ModelName,
		ImageProvider:        req.ImageProvider,
		ImageModel:           req.ImageModel,
		SystemPromptOverride: req.SystemPromptOverride,
	}
	if req.Title != nil {
		conv.Title = *req.Title
	}
	if req.DeepThinking != nil {
		conv.DeepThinking = *req.DeepThinking
	}

	if err := h.convSvc.Create(r.Context(), conv); err != nil {
		respondError(w, "failed to create conversation", http.StatusInternalServerError)
		return
	}
	respondJSON(w, conv, http.StatusCreated)
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	conv, err := h.convSvc.Get(r.Context(), convID, userID)
	if err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}
	respondJSON(w, conv, http.StatusOK)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	convs, err := h.convSvc.List(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"conversations": convs}, http.StatusOK)
}

// applyOptional merges a PATCH field: empty string clears, absent keeps.
func applyOptional(current *string, patch *string) *string {
	if patch == nil {
		return current
	}
	if *patch == "" {
		return nil
	}
	return patch
}

func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	conv, err := h.convSvc.Get(r.Context(), convID, userID)
	if err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	var req struct {
		Title                *string `json:"title"`
		Provider             *string `json:"provider"`
		ModelName            *string `json:"model_name"`
		ImageProvider        *string `json:"image_provider"`
		ImageModel           *string `json:"image_model"`
		SystemPromptOverride *string `json:"system_prompt_override"`
		DeepThinking         *bool   `json:"deep_thinking"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		conv.Title = *req.Title
	}
	oldProvider, oldModel := conv.Provider, conv.ModelName
	oldImageProvider, oldImageModel := conv.ImageProvider, conv.ImageModel
	conv.Provider = applyOptional(conv.Provider, req.Provider)
	conv.ModelName = applyOptional(conv.ModelName, req.ModelName)
	conv.ImageProvider = applyOptional(conv.ImageProvider, req.ImageProvider)
	conv.ImageModel = applyOptional(conv.ImageModel, req.ImageModel)
	conv.SystemPromptOverride = applyOptional(conv.SystemPromptOverride, req.SystemPromptOverride)
	if req.DeepThinking != nil {
		conv.DeepThinking = *req.DeepThinking
	}

	if err := h.convSvc.Update(r.Context(), conv); err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	// A provider or model change invalidates the running container's init
	// parameters: tear the sender and the sandbox down so the next message
	// boots a fresh container. Its transport task cleans itself up via its
	// own generation.
	if !strPtrEq(oldProvider, conv.Provider) || !strPtrEq(oldModel, conv.ModelName) ||
		!strPtrEq(oldImageProvider, conv.ImageProvider) || !strPtrEq(oldImageModel, conv.ImageModel) {
		h.teardown.RemoveContainer(convID)
		if err := h.teardown.StopContainer(r.Context(), convID); err != nil {
			slog.Debug("no container to stop after config change", "conversation_id", convID, "error", err)
		}
	}

	respondJSON(w, conv, http.StatusOK)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	if err := h.convSvc.Delete(r.Context(), convID, userID); err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	h.teardown.RemoveContainer(convID)
	if err := h.teardown.StopContainer(r.Context(), convID); err != nil {
		slog.Debug("no container to stop on delete", "conversation_id", convID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	if _, err := h.convSvc.Get(r.Context(), convID, userID); err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	limit := min(parseIntQuery(r, "limit", 50), 100)
	offset := parseIntQuery(r, "offset", 0)

	messages, total, err := h.convSvc.ListMessages(r.Context(), convID, limit, offset)
	if err != nil {
		respondError(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"messages": messages, "total": total}, http.StatusOK)
}

func (h *ConversationHandler) GetMCPServers(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	if _, err := h.convSvc.Get(r.Context(), convID, userID); err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	servers, err := h.mcpSvc.GetForConversation(r.Context(), convID)
	if err != nil {
		respondError(w, "failed to list mcp servers", http.StatusInternalServerError)
		return
	}
	respondJSON(w, servers, http.StatusOK)
}

func (h *ConversationHandler) SetMCPServers(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	if _, err := h.convSvc.Get(r.Context(), convID, userID); err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}

	var req struct {
		ServerIDs []string `json:"server_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.mcpSvc.SetForConversation(r.Context(), convID, req.ServerIDs); err != nil {
		respondError(w, "failed to set mcp servers", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]string{"message": "ok"}, http.StatusOK)
}
