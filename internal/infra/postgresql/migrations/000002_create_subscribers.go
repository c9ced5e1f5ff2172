package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"gorm.io/gorm"
)

func createSubscribersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_subscribers",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SubscriberModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_subscribers_drip_due ON subscribers (drip_step, created_at) WHERE is_active`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SubscriberModel{})
		},
	}
}
