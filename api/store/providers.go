package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/shared/id"
)

const providerColumns = `id, user_id, provider, api_key_encrypted, endpoint_url,
		model_name, models, image_models, is_default, created_at`

func scanProvider(row pgx.Row) (*domain.Provider, error) {
	p := &domain.Provider{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Provider, &p.APIKeyEncrypted, &p.EndpointURL,
		&p.ModelName, &p.Models, &p.ImageModels, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpsertProvider creates or updates a user's credential for a provider kind.
// When isDefault is set, the default flag is cleared on the user's other
// providers first.
func (s *Store) UpsertProvider(ctx context.Context, p *domain.Provider) (*domain.Provider, error) {
	if p.ID == "" {
		p.ID = id.NewProvider()
	}

	if p.IsDefault {
		_, err := s.conn(ctx).Exec(ctx, `
			UPDATE user_providers SET is_default = FALSE
			WHERE user_id = $1 AND provider != $2`,
			p.UserID, p.Provider)
		if err != nil {
			return nil, fmt.Errorf("clear default providers: %w", err)
		}
	}

	query := `
		INSERT INTO user_providers (id, user_id, provider, api_key_encrypted, endpoint_url,
			model_name, models, image_models, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			api_key_encrypted = EXCLUDED.api_key_encrypted,
			endpoint_url = EXCLUDED.endpoint_url,
			model_name = EXCLUDED.model_name,
			models = EXCLUDED.models,
			image_models = EXCLUDED.image_models,
			is_default = EXCLUDED.is_default
		RETURNING ` + providerColumns

	prov, err := scanProvider(s.conn(ctx).QueryRow(ctx, query,
		p.ID, p.UserID, p.Provider, p.APIKeyEncrypted, p.EndpointURL,
		p.ModelName, p.Models, p.ImageModels, p.IsDefault))
	if err != nil {
		return nil, fmt.Errorf("upsert provider: %w", err)
	}
	return prov, nil
}

// GetProviderByName fetches a user's credential for a provider kind.
func (s *Store) GetProviderByName(ctx context.Context, userID, provider string) (*domain.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM user_providers
		WHERE user_id = $1 AND provider = $2`

	p, err := scanProvider(s.conn(ctx).QueryRow(ctx, query, userID, provider))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, err
}

// GetDefaultProvider fetches the user's default provider, if any.
func (s *Store) GetDefaultProvider(ctx context.Context, userID string) (*domain.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM user_providers
		WHERE user_id = $1 AND is_default`

	p, err := scanProvider(s.conn(ctx).QueryRow(ctx, query, userID))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get default provider: %w", err)
	}
	return p, err
}

// ListProviders returns a user's providers in creation order.
func (s *Store) ListProviders(ctx context.Context, userID string) ([]*domain.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM user_providers
		WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := s.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []*domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// DeleteProvider removes a user's credential for a provider kind.
func (s *Store) DeleteProvider(ctx context.Context, userID, provider string) error {
	result, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM user_providers WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
