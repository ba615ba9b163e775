package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the lifecycle state of an order. The only transition this
// service performs is pending -> paid; ticket closure happens outside.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// PaymentMethod identifies which provider the buyer chose.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

// Order represents a ticket purchase stored in Postgres. Product and coupon
// fields are snapshots taken at selection time, intentionally decoupled from
// later catalog edits.
type Order struct {
	ID        uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChannelID string      `gorm:"type:varchar(64);not null;index" json:"channel_id"`
	BuyerID   string      `gorm:"type:varchar(64);not null;index" json:"buyer_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	ProductID    string  `gorm:"type:varchar(64);not null" json:"product_id"`
	ProductName  string  `gorm:"type:varchar(256);not null" json:"product_name"`
	ProductPrice float64 `gorm:"not null" json:"product_price"`

	OriginalAmount float64 `gorm:"not null" json:"original_amount"`
	DiscountAmount float64 `gorm:"not null;default:0" json:"discount_amount"`
	TotalAmount    float64 `gorm:"not null" json:"total_amount"`

	CouponCode    *string  `gorm:"type:varchar(32)" json:"coupon_code,omitempty"`
	CouponKind    *string  `gorm:"type:varchar(10)" json:"coupon_kind,omitempty"`
	CouponValue   *float64 `json:"coupon_value,omitempty"`
	CouponMaxUses *int     `json:"coupon_max_uses,omitempty"`
	// CouponUsageRecorded transitions false -> true at most once, strictly
	// together with the pending -> paid transition. It is the sole gate for
	// incrementing the coupon ledger for this order.
	CouponUsageRecorded bool `gorm:"not null;default:false" json:"coupon_usage_recorded"`

	PaymentMethod   *string  `gorm:"type:varchar(10)" json:"payment_method,omitempty"`
	PaymentProvider *string  `gorm:"type:varchar(32)" json:"payment_provider,omitempty"`
	PaymentURL      *string  `gorm:"type:varchar(1024)" json:"payment_url,omitempty"`
	TransactionID   *string  `gorm:"type:varchar(128);index" json:"transaction_id,omitempty"`
	PaidAmount      *float64 `json:"paid_amount,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`

	// ForceCloseConfirmations counts "close ticket" confirmations for this
	// order; the ticket is closable once it reaches two.
	ForceCloseConfirmations int `gorm:"not null;default:0" json:"force_close_confirmations"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Coupon returns the coupon snapshot attached at creation time, or nil.
func (o *Order) Coupon() *CouponSnapshot {
	if o.CouponCode == nil {
		return nil
	}
	snap := CouponSnapshot{Code: *o.CouponCode}
	if o.CouponKind != nil {
		snap.Kind = CouponKind(*o.CouponKind)
	}
	if o.CouponValue != nil {
		snap.Value = *o.CouponValue
	}
	if o.CouponMaxUses != nil {
		snap.MaxUses = *o.CouponMaxUses
	}
	return &snap
}

// SetCoupon attaches a coupon snapshot and its pricing outcome.
func (o *Order) SetCoupon(snap CouponSnapshot) {
	code := snap.Code
	kind := string(snap.Kind)
	value := snap.Value
	maxUses := snap.MaxUses
	o.CouponCode = &code
	o.CouponKind = &kind
	o.CouponValue = &value
	o.CouponMaxUses = &maxUses
}

// ProductSelection is the product snapshot sent when a buyer picks a product.
type ProductSelection struct {
	ID    string  `json:"id" binding:"required"`
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price" binding:"required,gt=0"`
}

// CreateOrderRequest is the payload for the product-selection step. BuyerID
// is stamped from the gateway identity, not taken from the body.
type CreateOrderRequest struct {
	BuyerID string           `json:"-"`
	Product ProductSelection `json:"product" binding:"required"`
}

// SubmitCouponRequest is the payload for entering a discount code in a ticket.
type SubmitCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// IssuePaymentLinkRequest picks the payment provider for an order.
type IssuePaymentLinkRequest struct {
	Method PaymentMethod `json:"method" binding:"required,oneof=stripe crypto"`
}
