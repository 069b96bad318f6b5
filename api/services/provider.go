package services

import (
	"context"

	"github.com/firespoon/sandchat/api/crypto"
	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/store"
)

// ProviderService manages provider credentials. Plaintext API keys exist
// only transiently here: they are encrypted before the store sees them and
// never returned to HTTP callers.
type ProviderService struct {
	store         *store.Store
	encryptionKey string
}

func NewProviderService(s *store.Store, encryptionKey string) *ProviderService {
	return &ProviderService{store: s, encryptionKey: encryptionKey}
}

// Upsert stores a credential, encrypting the API key at rest. An empty
// apiKey keeps the previously stored ciphertext.
func (svc *ProviderService) Upsert(ctx context.Context, p *domain.Provider, apiKey string) (*domain.Provider, error) {
	if apiKey != "" {
		encrypted, err := crypto.Encrypt(apiKey, svc.encryptionKey)
		if err != nil {
			return nil, err
		}
		p.APIKeyEncrypted = encrypted
	} else {
		existing, err := svc.store.GetProviderByName(ctx, p.UserID, p.Provider)
		if err != nil {
			return nil, domain.ErrNotFound
		}
		p.APIKeyEncrypted = existing.APIKeyEncrypted
	}

	return svc.store.UpsertProvider(ctx, p)
}

func (svc *ProviderService) List(ctx context.Context, userID string) ([]*domain.Provider, error) {
	return svc.store.ListProviders(ctx, userID)
}

func (svc *ProviderService) Get(ctx context.Context, userID, provider string) (*domain.Provider, error) {
	return svc.store.GetProviderByName(ctx, userID, provider)
}

func (svc *ProviderService) Delete(ctx context.Context, userID, provider string) error {
	return svc.store.DeleteProvider(ctx, userID, provider)
}
