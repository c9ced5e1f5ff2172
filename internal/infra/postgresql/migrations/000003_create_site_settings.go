package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"gorm.io/gorm"
)

func createSiteSettingsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_site_settings",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SiteSettingsModel{}); err != nil {
				return err
			}
			// Seed the singleton row; every column falls back to its default.
			return tx.Exec(`INSERT INTO site_settings (id, updated_at) VALUES (?, NOW()) ON CONFLICT (id) DO NOTHING`, repository.SettingsRowID).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SiteSettingsModel{})
		},
	}
}
