package services

import (
	"context"
	"errors"

	"github.com/firespoon/sandchat/api/domain"
	"github.com/firespoon/sandchat/api/prompts"
	"github.com/firespoon/sandchat/api/store"
)

// PresetService manages per-user system prompt presets and seeds any
// missing built-ins on every List.
type PresetService struct {
	store *store.Store
}

func NewPresetService(s *store.Store) *PresetService {
	return &PresetService{store: s}
}

// List returns the user's presets, seeding the built-ins first.
func (svc *PresetService) List(ctx context.Context, userID string) ([]*domain.Preset, error) {
	for _, builtin := range prompts.Builtin() {
		_, err := svc.store.CreatePreset(ctx, &domain.Preset{
			UserID:      userID,
			Name:        builtin.Name,
			Description: builtin.Description,
			Content:     builtin.Content,
		})
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
	}
	return svc.store.ListPresets(ctx, userID)
}

func (svc *PresetService) Create(ctx context.Context, p *domain.Preset) (*domain.Preset, error) {
	return svc.store.CreatePreset(ctx, p)
}

func (svc *PresetService) Update(ctx context.Context, p *domain.Preset) (*domain.Preset, error) {
	return svc.store.UpdatePreset(ctx, p)
}

func (svc *PresetService) Delete(ctx context.Context, presetID, userID string) error {
	return svc.store.DeletePreset(ctx, presetID, userID)
}
