package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/shared/id"
)

const presetColumns = "id, user_id, name, description, content, is_default, created_at"

func scanPreset(row pgx.Row) (*domain.Preset, error) {
	p := &domain.Preset{}
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Content, &p.IsDefault, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// CreatePreset inserts a system prompt preset for a user. If the user already
// has a preset with that name, the existing row is kept (ON CONFLICT DO
// NOTHING) and ErrConflict is returned, so builtin seeding is idempotent.
func (s *Store) CreatePreset(ctx context.Context, p *domain.Preset) (*domain.Preset, error) {
	if p.ID == "" {
		p.ID = id.NewPreset()
	}

	query := `
		INSERT INTO user_presets (id, user_id, name, description, content, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, name) DO NOTHING
		RETURNING ` + presetColumns

	created, err := scanPreset(s.conn(ctx).QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.Content, p.IsDefault))
	if errors.Is(err, domain.ErrNotFound) {
		// Name already existed; the caller treats that as already seeded.
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create preset: %w", err)
	}
	return created, nil
}

// ListPresets returns a user's presets in creation order.
func (s *Store) ListPresets(ctx context.Context, userID string) ([]*domain.Preset, error) {
	query := `SELECT ` + presetColumns + ` FROM user_presets
		WHERE user_id = $1 ORDER BY created_at ASC`

	rows, err := s.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var presets []*domain.Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// UpdatePreset replaces a preset's mutable fields for its owner.
func (s *Store) UpdatePreset(ctx context.Context, p *domain.Preset) (*domain.Preset, error) {
	query := `
		UPDATE user_presets
		SET name = $3, description = $4, content = $5, is_default = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + presetColumns

	updated, err := scanPreset(s.conn(ctx).QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.Content, p.IsDefault))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update preset: %w", err)
	}
	return updated, nil
}

// DeletePreset removes a preset owned by the user.
func (s *Store) DeletePreset(ctx context.Context, presetID, userID string) error {
	result, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM user_presets WHERE id = $1 AND user_id = $2`, presetID, userID)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
