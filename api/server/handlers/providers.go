package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/services"
)

type ProviderHandler struct {
	providerSvc *services.ProviderService
}

func NewProviderHandler(providerSvc *services.ProviderService) *ProviderHandler {
	return &ProviderHandler{providerSvc: providerSvc}
}

// providerResponse never carries key material, not even ciphertext.
type providerResponse struct {
	ID          string  `json:"id"`
	Provider    string  `json:"provider"`
	EndpointURL *string `json:"endpoint_url,omitempty"`
	ModelName   *string `json:"model_name,omitempty"`
	Models      *string `json:"models,omitempty"`
	ImageModels *string `json:"image_models,omitempty"`
	IsDefault   bool    `json:"is_default"`
	HasAPIKey   bool    `json:"has_api_key"`
}

func newProviderResponse(p *domain.Provider) providerResponse {
	return providerResponse{
		ID:          p.ID,
		Provider:    p.Provider,
		EndpointURL: p.EndpointURL,
		ModelName:   p.ModelName,
		Models:      p.Models,
		ImageModels: p.ImageModels,
		IsDefault:   p.IsDefault,
		HasAPIKey:   p.APIKeyEncrypted != "",
	}
}

func (h *ProviderHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req struct {
		Provider    string  `json:"provider"`
		APIKey      string  `json:"api_key"`
		EndpointURL *string `json:"endpoint_url"`
		ModelName   *string `json:"model_name"`
		Models      *string `json:"models"`
		ImageModels *string `json:"image_models"`
		IsDefault   bool    `json:"is_default"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Provider == "" {
		respondError(w, "provider is required", http.StatusBadRequest)
		return
	}

	provider, err := h.providerSvc.Upsert(r.Context(), &domain.Provider{
		UserID:      userID,
		Provider:    req.Provider,
		EndpointURL: req.EndpointURL,
		ModelName:   req.ModelName,
		Models:      req.Models,
		ImageModels: req.ImageModels,
		IsDefault:   req.IsDefault,
	}, req.APIKey)
	if err != nil {
		respondStoreError(w, err, "provider not found")
		return
	}
	respondJSON(w, newProviderResponse(provider), http.StatusOK)
}

func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	providers, err := h.providerSvc.List(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to list providers", http.StatusInternalServerError)
		return
	}

	out := make([]providerResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, newProviderResponse(p))
	}
	respondJSON(w, out, http.StatusOK)
}

func (h *ProviderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	provider := chi.URLParam(r, "provider")

	if err := h.providerSvc.Delete(r.Context(), userID, provider); err != nil {
		respondStoreError(w, err, "provider not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
