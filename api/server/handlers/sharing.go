package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firespoon/sandchat/api/services"
)

// SharingHandler exposes share management for owners and the public
// read-only view behind a share token.
type SharingHandler struct {
	convSvc *services.ConversationService
}

func NewSharingHandler(convSvc *services.ConversationService) *SharingHandler {
	return &SharingHandler{convSvc: convSvc}
}

func (h *SharingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	token, err := h.convSvc.Share(r.Context(), convID, userID)
	if err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}
	respondJSON(w, map[string]string{
		"share_token": token,
		"share_url":   "/share/" + token,
	}, http.StatusOK)
}

func (h *SharingHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	convID := chi.URLParam(r, "id")

	removed, err := h.convSvc.Revoke(r.Context(), convID, userID)
	if err != nil {
		respondStoreError(w, err, "conversation not found")
		return
	}
	if !removed {
		respondError(w, "conversation is not shared", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetShared strips owner-only fields from the public view.
func (h *SharingHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	conv, err := h.convSvc.GetShared(r.Context(), token)
	if err != nil {
		respondStoreError(w, err, "shared conversation not found")
		return
	}
	respondJSON(w, map[string]any{
		"id":         conv.ID,
		"title":      conv.Title,
		"created_at": conv.CreatedAt,
		"updated_at": conv.UpdatedAt,
	}, http.StatusOK)
}

func (h *SharingHandler) GetSharedMessages(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	conv, err := h.convSvc.GetShared(r.Context(), token)
	if err != nil {
		respondStoreError(w, err, "shared conversation not found")
		return
	}

	limit := min(parseIntQuery(r, "limit", 100), 500)
	offset := parseIntQuery(r, "offset", 0)

	messages, total, err := h.convSvc.ListMessages(r.Context(), conv.ID, limit, offset)
	if err != nil {
		respondError(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"messages": messages, "total": total}, http.StatusOK)
}
