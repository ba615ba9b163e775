package services

import (
	"fmt"
	"math"

	"ticketshop/models"
)

// PriceQuote is the outcome of applying a coupon snapshot to a base amount.
type PriceQuote struct {
	Total    float64 `json:"total"`
	Discount float64 `json:"discount"`
	Label    string  `json:"label,omitempty"`
}

// ApplyCoupon computes the discounted price for a base amount. It is a pure
// function, safe to call any number of times for preview purposes. Monetary
// outputs are rounded to two decimals at the final step only.
func ApplyCoupon(baseAmount float64, snap *models.CouponSnapshot) PriceQuote {
	if snap == nil {
		return PriceQuote{Total: round2(baseAmount)}
	}

	var discount float64
	var label string
	switch snap.Kind {
	case models.CouponKindPercent:
		pct := clamp(snap.Value, 0, 100)
		discount = baseAmount * pct / 100
		label = fmt.Sprintf("%s (%.0f%% off)", snap.Code, pct)
	default: // fixed
		discount = clamp(snap.Value, 0, baseAmount)
		label = fmt.Sprintf("%s (-$%.2f)", snap.Code, discount)
	}

	discount = round2(discount)
	return PriceQuote{
		Total:    round2(baseAmount - discount),
		Discount: discount,
		Label:    label,
	}
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
