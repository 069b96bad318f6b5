package services

import (
	"context"
	"errors"
	"time"

	"github.com/firespoon/sandchat/api/auth"
	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailRegistered    = errors.New("email already registered")
)

// TokenPair is what a successful authentication hands the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccountService implements registration, login, and refresh token rotation.
type AccountService struct {
	store           *store.Store
	jwtSecret       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewAccountService(s *store.Store, jwtSecret string, accessTokenTTL, refreshTokenTTL time.Duration) *AccountService {
	return &AccountService{
		store:           s,
		jwtSecret:       jwtSecret,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Register creates a user and returns the first token pair.
func (svc *AccountService) Register(ctx context.Context, username, email, password string) (*domain.User, *TokenPair, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	if _, err := svc.store.GetUserByUsername(ctx, username); err == nil {
		return nil, nil, ErrUsernameTaken
	}
	if _, err := svc.store.GetUserByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailRegistered
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user, err := svc.store.CreateUser(ctx, username, email, hash)
	if err != nil {
		return nil, nil, err
	}

	pair, err := svc.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login verifies credentials and returns a fresh token pair.
func (svc *AccountService) Login(ctx context.Context, username, password string) (*domain.User, *TokenPair, error) {
	user, err := svc.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := svc.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (svc *AccountService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *TokenPair, error) {
	stored, err := svc.store.GetRefreshTokenByHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if time.Now().After(stored.ExpiresAt) {
		_, _ = svc.store.DeleteRefreshTokenByHash(ctx, stored.TokenHash)
		return nil, nil, ErrInvalidCredentials
	}

	user, err := svc.store.GetUser(ctx, stored.UserID)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if _, err := svc.store.DeleteRefreshTokenByHash(ctx, stored.TokenHash); err != nil {
		return nil, nil, err
	}

	pair, err := svc.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes the presented refresh token.
func (svc *AccountService) Logout(ctx context.Context, refreshToken string) error {
	_, err := svc.store.DeleteRefreshTokenByHash(ctx, auth.HashRefreshToken(refreshToken))
	return err
}

func (svc *AccountService) issueTokens(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, err := auth.CreateAccessToken(user.ID, user.Username, user.IsAdmin, svc.jwtSecret, svc.accessTokenTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(svc.refreshTokenTTL)
	if _, err := svc.store.CreateRefreshToken(ctx, user.ID, hash, expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
