package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubscriberRepository interface {
	Upsert(ctx context.Context, email string) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
	ListDueForStep(ctx context.Context, target domain.DripStep, createdBefore time.Time, limit int) ([]domain.Subscriber, error)
	AdvanceStep(ctx context.Context, id string, from domain.DripStep, to domain.DripStep) error
}

type GormSubscriberRepo struct {
	db *gorm.DB
}

func NewGormSubscriberRepo(db *gorm.DB) *GormSubscriberRepo {
	return &GormSubscriberRepo{db: db}
}

// Upsert enrolls email at step 0, or reactivates an existing subscriber
// without resetting its campaign position.
func (r *GormSubscriberRepo) Upsert(ctx context.Context, email string) (*domain.Subscriber, error) {
	model := SubscriberModel{
		ID:       uuid.NewString(),
		Email:    email,
		DripStep: int(domain.DripStepSignedUp),
		IsActive: true,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(map[string]any{"is_active": true, "updated_at": gorm.Expr("NOW()")}),
		}).
		Create(&model).Error
	if err != nil {
		return nil, err
	}

	var stored SubscriberModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&stored).Error; err != nil {
		return nil, err
	}
	return subscriberModelToDomain(&stored), nil
}

func (r *GormSubscriberRepo) Unsubscribe(ctx context.Context, email string) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("email = ?", email).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSubscriberRepo) ListDueForStep(ctx context.Context, target domain.DripStep, createdBefore time.Time, limit int) ([]domain.Subscriber, error) {
	var models []SubscriberModel
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND drip_step = ? AND created_at <= ?", true, int(target.Previous()), createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	subscribers := make([]domain.Subscriber, 0, len(models))
	for i := range models {
		subscribers = append(subscribers, *subscriberModelToDomain(&models[i]))
	}
	return subscribers, nil
}

// AdvanceStep moves a subscriber forward only if it is still at from.
func (r *GormSubscriberRepo) AdvanceStep(ctx context.Context, id string, from domain.DripStep, to domain.DripStep) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("id = ? AND drip_step = ?", id, int(from)).
		Update("drip_step", int(to))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
