package models

import "time"

// PaymentNotice is the normalized form of an inbound provider webhook, built
// after the provider's own authenticity check has passed.
type PaymentNotice struct {
	OrderID       string
	Paid          bool
	TransactionID string
	PaidAmount    float64
	Method        string
	Provider      string
}

// OrderPaidEvent is published to Kafka (and best-effort to SNS) exactly once
// per genuine pending -> paid transition.
type OrderPaidEvent struct {
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	ChannelID     string    `json:"channel_id"`
	BuyerID       string    `json:"buyer_id"`
	Amount        float64   `json:"amount"`
	CouponCode    string    `json:"coupon_code,omitempty"`
	Provider      string    `json:"provider"`
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
