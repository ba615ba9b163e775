package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CouponKind represents the type of discount a coupon provides.
type CouponKind string

const (
	CouponKindFixed   CouponKind = "fixed"
	CouponKindPercent CouponKind = "percent"
)

// couponCodeRe is the format rule for normalized codes.
var couponCodeRe = regexp.MustCompile(`^[A-Z0-9_-]{2,32}$`)

// NormalizeCouponCode uppercases and trims a user-submitted code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCouponCode reports whether a normalized code matches the format rule.
func ValidCouponCode(code string) bool {
	return couponCodeRe.MatchString(code)
}

// Coupon represents a discount code stored in Postgres.
type Coupon struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Kind      CouponKind     `gorm:"type:varchar(10);not null" json:"kind"`
	Value     float64        `gorm:"not null" json:"value"` // USD amount or percentage
	MaxUses   int            `gorm:"not null;default:0" json:"max_uses"` // 0 = unlimited
	Uses      int            `gorm:"not null;default:0" json:"uses"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Usable reports whether the coupon can still be applied.
func (c *Coupon) Usable() bool {
	return c.Active && (c.MaxUses == 0 || c.Uses < c.MaxUses)
}

// Snapshot captures the coupon definition at the moment it is accepted.
func (c *Coupon) Snapshot() CouponSnapshot {
	return CouponSnapshot{
		Code:    c.Code,
		Kind:    c.Kind,
		Value:   c.Value,
		MaxUses: c.MaxUses,
	}
}

// CouponSnapshot is a point-in-time copy of a coupon definition. It is stored
// on pending associations and on orders so later catalog edits cannot change
// an already-quoted price.
type CouponSnapshot struct {
	Code    string     `json:"code"`
	Kind    CouponKind `json:"kind"`
	Value   float64    `json:"value"`
	MaxUses int        `json:"max_uses"`
}

// CreateCouponRequest is the payload for creating a new coupon.
type CreateCouponRequest struct {
	Code    string     `json:"code" binding:"required"`
	Kind    CouponKind `json:"kind" binding:"required"`
	Value   float64    `json:"value" binding:"required"`
	MaxUses int        `json:"max_uses"`
}

// PreviewDiscountRequest asks for a price quote without side effects.
type PreviewDiscountRequest struct {
	Code   string  `json:"code" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}
