package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/donation-engine/internal/domain"
	"gorm.io/gorm"
)

type DonationListParams struct {
	Status   *domain.DonationStatus
	Email    string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type DonationRepository interface {
	Create(ctx context.Context, d *domain.Donation) error
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error)
	List(ctx context.Context, params DonationListParams) ([]domain.Donation, int64, error)
	MarkCompleted(ctx context.Context, sessionID string, orderID int64) error
	MarkFailed(ctx context.Context, sessionID string, orderID *int64) error
}

type GormDonationRepo struct {
	db *gorm.DB
}

func NewGormDonationRepo(db *gorm.DB) *GormDonationRepo {
	return &GormDonationRepo{db: db}
}

func (r *GormDonationRepo) Create(ctx context.Context, d *domain.Donation) error {
	model := donationModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if d != nil {
		*d = *donationModelToDomain(model)
	}
	return nil
}

func (r *GormDonationRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Donation, error) {
	var model DonationModel
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return donationModelToDomain(&model), nil
}

func (r *GormDonationRepo) List(ctx context.Context, params DonationListParams) ([]domain.Donation, int64, error) {
	query := r.db.WithContext(ctx).Model(&DonationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Email != "" {
		query = query.Where("email = ?", params.Email)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []DonationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	donations := make([]domain.Donation, 0, len(models))
	for i := range models {
		donations = append(donations, *donationModelToDomain(&models[i]))
	}

	return donations, total, nil
}

// MarkCompleted settles a pending donation. A donation that is already
// terminal is left untouched and ErrConflict is returned.
func (r *GormDonationRepo) MarkCompleted(ctx context.Context, sessionID string, orderID int64) error {
	return r.settle(ctx, sessionID, domain.DonationStatusCompleted, &orderID)
}

func (r *GormDonationRepo) MarkFailed(ctx context.Context, sessionID string, orderID *int64) error {
	return r.settle(ctx, sessionID, domain.DonationStatusFailed, orderID)
}

func (r *GormDonationRepo) settle(ctx context.Context, sessionID string, status domain.DonationStatus, orderID *int64) error {
	updates := map[string]any{"status": status}
	if orderID != nil {
		updates["order_id"] = *orderID
	}

	result := r.db.WithContext(ctx).
		Model(&DonationModel{}).
		Where("session_id = ? AND status = ?", sessionID, domain.DonationStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missingOrSettled(ctx, sessionID)
	}
	return nil
}

func (r *GormDonationRepo) missingOrSettled(ctx context.Context, sessionID string) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&DonationModel{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}
