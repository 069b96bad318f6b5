package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/firespoon/sandchat/api/auth"
	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/services"
)

type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

type authResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

func newAuthResponse(user *domain.User, pair *services.TokenPair) authResponse {
	return authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User: userResponse{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			IsAdmin:  user.IsAdmin,
		},
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 50 {
		respondError(w, "username must be 3-50 characters", http.StatusBadRequest)
		return
	}

	user, pair, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailRegistered):
		respondError(w, err.Error(), http.StatusConflict)
	case err != nil:
		respondError(w, "registration failed", http.StatusInternalServerError)
	default:
		respondJSON(w, newAuthResponse(user, pair), http.StatusCreated)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, pair, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	respondJSON(w, newAuthResponse(user, pair), http.StatusOK)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, "invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	respondJSON(w, newAuthResponse(user, pair), http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.accounts.Logout(r.Context(), req.RefreshToken); err != nil {
		respondError(w, "logout failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}
