package repository

import (
	"context"
	"time"

	"ticketshop/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentConfirmation carries the provider callback fields written onto an
// order when it transitions to paid.
type PaymentConfirmation struct {
	Method        string
	Provider      string
	TransactionID string
	PaidAmount    float64
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindLatestByChannel returns the most recent order opened in a channel.
	FindLatestByChannel(ctx context.Context, channelID string) (*models.Order, error)
	// UpdatePaymentLink overwrites the payment link fields without touching
	// status; reports whether the order exists.
	UpdatePaymentLink(ctx context.Context, id uuid.UUID, method, provider, url, transactionID string) (bool, error)
	// ConfirmPaid performs the guarded pending -> paid transition. The
	// returned bool is true only for the call that actually flipped the
	// status; every other call gets the stored order unchanged.
	ConfirmPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (*models.Order, bool, error)
	// IncrementForceClose bumps the close-confirmation counter and returns
	// the new value.
	IncrementForceClose(ctx context.Context, id uuid.UUID) (int, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts a new order into the database.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID retrieves an order by its id.
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindLatestByChannel retrieves the most recent order for a channel.
func (r *GormOrderRepository) FindLatestByChannel(ctx context.Context, channelID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdatePaymentLink overwrites the link fields. Re-issuing a link is allowed
// at any time and never touches status.
func (r *GormOrderRepository) UpdatePaymentLink(ctx context.Context, id uuid.UUID, method, provider, url, transactionID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_method":   method,
			"payment_provider": provider,
			"payment_url":      url,
			"transaction_id":   transactionID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ConfirmPaid transitions the order to paid with a conditional UPDATE keyed
// on the current status. Concurrent confirmations for the same order resolve
// to exactly one winner; losers observe RowsAffected == 0 and reload.
func (r *GormOrderRepository) ConfirmPaid(ctx context.Context, id uuid.UUID, conf PaymentConfirmation) (*models.Order, bool, error) {
	var order models.Order
	transitioned := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return nil
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":           models.OrderStatusPaid,
			"payment_method":   conf.Method,
			"payment_provider": conf.Provider,
			"transaction_id":   conf.TransactionID,
			"paid_amount":      conf.PaidAmount,
			"paid_at":          now,
		}
		// The coupon flag flips in the same statement as the status so a
		// duplicate delivery can never re-trigger a ledger increment.
		if order.CouponCode != nil && !order.CouponUsageRecorded {
			updates["coupon_usage_recorded"] = true
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, models.OrderStatusPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost the race against a concurrent confirmation.
			return tx.First(&order, "id = ?", id).Error
		}

		transitioned = true
		return tx.First(&order, "id = ?", id).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &order, transitioned, nil
}

// IncrementForceClose bumps the per-order close-confirmation counter.
func (r *GormOrderRepository) IncrementForceClose(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ?", id).
			UpdateColumn("force_close_confirmations", gorm.Expr("force_close_confirmations + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var order models.Order
		if err := tx.Select("force_close_confirmations").First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		count = order.ForceCloseConfirmations
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
