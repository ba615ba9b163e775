package services

import (
	"context"
	"strings"

	"ticketshop/models"
	"ticketshop/repository"

	"go.uber.org/zap"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// CouponService defines the interface for coupon ledger business logic.
type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError)
	GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError)
	RemoveCoupon(ctx context.Context, code string) *ServiceError
	ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError)
	PreviewDiscount(ctx context.Context, req *models.PreviewDiscountRequest) (*PriceQuote, *ServiceError)
}

type couponServiceImpl struct {
	repo   repository.CouponRepository
	logger *zap.Logger
}

// NewCouponService creates a new CouponService.
func NewCouponService(repo repository.CouponRepository, logger *zap.Logger) CouponService {
	return &couponServiceImpl{repo: repo, logger: logger}
}

// CreateCoupon validates the definition and adds it to the ledger.
func (s *couponServiceImpl) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, *ServiceError) {
	code := models.NormalizeCouponCode(req.Code)
	if !models.ValidCouponCode(code) {
		return nil, &ServiceError{StatusCode: 400, Message: "Coupon code must be 2-32 characters of A-Z, 0-9, _ or -"}
	}
	if req.Kind != models.CouponKindFixed && req.Kind != models.CouponKindPercent {
		return nil, &ServiceError{StatusCode: 400, Message: "Coupon kind must be fixed or percent"}
	}
	if req.Value <= 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Coupon value must be positive"}
	}
	if req.Kind == models.CouponKindPercent && req.Value > 100 {
		return nil, &ServiceError{StatusCode: 400, Message: "Percentage discount cannot exceed 100"}
	}
	if req.MaxUses < 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "Max uses cannot be negative"}
	}

	coupon := &models.Coupon{
		Code:    code,
		Kind:    req.Kind,
		Value:   req.Value,
		MaxUses: req.MaxUses,
		Active:  true,
	}

	if err := s.repo.Create(ctx, coupon); err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, &ServiceError{StatusCode: 409, Message: "Coupon code already exists"}
		}
		s.logger.Error("Failed to create coupon", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create coupon"}
	}

	s.logger.Info("Coupon created", zap.String("code", coupon.Code), zap.String("kind", string(coupon.Kind)))
	return coupon, nil
}

// GetCoupon retrieves a usable coupon by code.
func (s *couponServiceImpl) GetCoupon(ctx context.Context, code string) (*models.Coupon, *ServiceError) {
	coupon, err := s.repo.FindUsableByCode(ctx, code)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Coupon not found"}
	}
	return coupon, nil
}

// RemoveCoupon deletes a coupon by code.
func (s *couponServiceImpl) RemoveCoupon(ctx context.Context, code string) *ServiceError {
	removed, err := s.repo.Remove(ctx, code)
	if err != nil {
		s.logger.Error("Failed to remove coupon", zap.String("code", code), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to remove coupon"}
	}
	if !removed {
		return &ServiceError{StatusCode: 404, Message: "Coupon not found"}
	}
	s.logger.Info("Coupon removed", zap.String("code", code))
	return nil
}

// ListCoupons returns paginated coupons.
func (s *couponServiceImpl) ListCoupons(ctx context.Context, page, limit int) ([]models.Coupon, int64, *ServiceError) {
	coupons, total, err := s.repo.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list coupons", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to list coupons"}
	}
	return coupons, total, nil
}

// PreviewDiscount quotes a price for an amount and code without recording
// anything.
func (s *couponServiceImpl) PreviewDiscount(ctx context.Context, req *models.PreviewDiscountRequest) (*PriceQuote, *ServiceError) {
	coupon, err := s.repo.FindUsableByCode(ctx, req.Code)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Coupon not found or no longer usable"}
	}
	snap := coupon.Snapshot()
	quote := ApplyCoupon(req.Amount, &snap)
	return &quote, nil
}
