package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/gorm"
)

// SettingsRowID is the primary key of the singleton site_settings row.
const SettingsRowID = 1

type SettingsRepository interface {
	Load(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, settings *domain.Settings) error
	ClaimDripRun(ctx context.Context, now time.Time, interval time.Duration) (bool, error)
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

func (r *GormSettingsRepo) Load(ctx context.Context) (*domain.Settings, error) {
	var model SiteSettingsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", SettingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConfigMissing
	}
	if err != nil {
		return nil, err
	}
	return settingsModelToDomain(&model), nil
}

func (r *GormSettingsRepo) Save(ctx context.Context, settings *domain.Settings) error {
	if settings == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(&SiteSettingsModel{}).
		Where("id = ?", SettingsRowID).
		Updates(settingsUpdates(settings))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConfigMissing
	}
	return nil
}

// ClaimDripRun records now as the last drip run if the previous run is at
// least interval old. It returns false when another run holds the window.
func (r *GormSettingsRepo) ClaimDripRun(ctx context.Context, now time.Time, interval time.Duration) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&SiteSettingsModel{}).
		Where("id = ? AND (last_drip_run IS NULL OR last_drip_run <= ?)", SettingsRowID, now.Add(-interval)).
		UpdateColumn("last_drip_run", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
