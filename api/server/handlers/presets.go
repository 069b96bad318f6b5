package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/services"
)

type PresetHandler struct {
	presetSvc *services.PresetService
}

func NewPresetHandler(presetSvc *services.PresetService) *PresetHandler {
	return &PresetHandler{presetSvc: presetSvc}
}

func (h *PresetHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	presets, err := h.presetSvc.List(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to list presets", http.StatusInternalServerError)
		return
	}
	respondJSON(w, presets, http.StatusOK)
}

func (h *PresetHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Content     string `json:"content"`
		IsDefault   bool   `json:"is_default"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Content == "" {
		respondError(w, "name and content are required", http.StatusBadRequest)
		return
	}

	preset, err := h.presetSvc.Create(r.Context(), &domain.Preset{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		IsDefault:   req.IsDefault,
	})
	if errors.Is(err, domain.ErrConflict) {
		respondError(w, "a preset with that name already exists", http.StatusConflict)
		return
	}
	if err != nil {
		respondError(w, "failed to create preset", http.StatusInternalServerError)
		return
	}
	respondJSON(w, preset, http.StatusCreated)
}

func (h *PresetHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	presetID := chi.URLParam(r, "id")

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Content     *string `json:"content"`
		IsDefault   *bool   `json:"is_default"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Load current values so a partial update keeps the rest.
	presets, err := h.presetSvc.List(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to load presets", http.StatusInternalServerError)
		return
	}
	var preset *domain.Preset
	for _, p := range presets {
		if p.ID == presetID {
			preset = p
			break
		}
	}
	if preset == nil {
		respondError(w, "preset not found", http.StatusNotFound)
		return
	}

	if req.Name != nil {
		preset.Name = *req.Name
	}
	if req.Description != nil {
		preset.Description = *req.Description
	}
	if req.Content != nil {
		preset.Content = *req.Content
	}
	if req.IsDefault != nil {
		preset.IsDefault = *req.IsDefault
	}

	updated, err := h.presetSvc.Update(r.Context(), preset)
	if err != nil {
		respondStoreError(w, err, "preset not found")
		return
	}
	respondJSON(w, updated, http.StatusOK)
}

func (h *PresetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	presetID := chi.URLParam(r, "id")

	if err := h.presetSvc.Delete(r.Context(), presetID, userID); err != nil {
		respondStoreError(w, err, "preset not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
