package service

import (
	"context"

	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
)

// SettingService handles portal settings business logic.
type SettingService struct {
	repo *repository.SettingRepository
}

// NewSettingService creates a new SettingService.
func NewSettingService(repo *repository.SettingRepository) *SettingService {
	return &SettingService{repo: repo}
}

// GetAll retrieves all settings.
func (s *SettingService) GetAll(ctx context.Context) ([]model.AppSetting, error) {
	settings, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = []model.AppSetting{}
	}
	return settings, nil
}

// Update upserts a batch of settings.
func (s *SettingService) Update(ctx context.Context, settings map[string]string) error {
	for key, value := range settings {
		if err := s.repo.Upsert(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
