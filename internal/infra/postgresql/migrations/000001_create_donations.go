package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"gorm.io/gorm"
)

func createDonationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_donations",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DonationModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_donations_status_created ON donations (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_donations_email ON donations (email)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DonationModel{})
		},
	}
}
