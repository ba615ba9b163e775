package repository

import (
	"context"

	"ticketshop/models"

	"gorm.io/gorm"
)

// CouponRepository defines the interface for coupon ledger data access.
type CouponRepository interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	// FindUsableByCode returns the coupon only if it is active and under its
	// usage cap; absent, inactive and exhausted codes all come back as
	// gorm.ErrRecordNotFound.
	FindUsableByCode(ctx context.Context, code string) (*models.Coupon, error)
	// RecordUse re-validates usability and increments the usage counter in a
	// single guarded UPDATE. Returns false without mutation when the coupon
	// is missing or no longer usable.
	RecordUse(ctx context.Context, code string) (bool, error)
	// Remove deletes a coupon by normalized code; reports whether anything
	// was removed.
	Remove(ctx context.Context, code string) (bool, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error)
}

// GormCouponRepository implements CouponRepository using GORM.
type GormCouponRepository struct {
	db *gorm.DB
}

// NewGormCouponRepository creates a new GormCouponRepository.
func NewGormCouponRepository(db *gorm.DB) CouponRepository {
	return &GormCouponRepository{db: db}
}

// Create inserts a new coupon into the database.
func (r *GormCouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

// FindUsableByCode retrieves a usable coupon by its normalized code.
func (r *GormCouponRepository) FindUsableByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", models.NormalizeCouponCode(code), true).
		Where("max_uses = 0 OR uses < max_uses").
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// RecordUse atomically increments the usage counter. The usability re-check
// lives in the WHERE clause so two confirmations racing the same coupon can
// never push uses past max_uses.
func (r *GormCouponRepository) RecordUse(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("code = ? AND active = ?", models.NormalizeCouponCode(code), true).
		Where("max_uses = 0 OR uses < max_uses").
		UpdateColumn("uses", gorm.Expr("uses + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Remove deletes a coupon by normalized code.
func (r *GormCouponRepository) Remove(ctx context.Context, code string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("code = ?", models.NormalizeCouponCode(code)).
		Delete(&models.Coupon{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindAll retrieves paginated coupons.
func (r *GormCouponRepository) FindAll(ctx context.Context, page, limit int) ([]models.Coupon, int64, error) {
	var coupons []models.Coupon
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Coupon{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&coupons).Error; err != nil {
		return nil, 0, err
	}

	return coupons, total, nil
}
