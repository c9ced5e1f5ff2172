package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"gorm.io/gorm"
)

func createPaymentNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_payment_notifications",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.PaymentNotificationModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.PaymentNotificationModel{})
		},
	}
}
