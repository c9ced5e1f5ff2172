package repository

import (
	"context"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/gorm"
)

type PaymentNotificationRepository interface {
	Create(ctx context.Context, n *domain.PaymentNotification) error
}

type GormPaymentNotificationRepo struct {
	db *gorm.DB
}

func NewGormPaymentNotificationRepo(db *gorm.DB) *GormPaymentNotificationRepo {
	return &GormPaymentNotificationRepo{db: db}
}

func (r *GormPaymentNotificationRepo) Create(ctx context.Context, n *domain.PaymentNotification) error {
	return r.db.WithContext(ctx).Create(paymentNotificationModelFromDomain(n)).Error
}
