package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticketshop/kafka"
	"ticketshop/models"
	aws_pkg "ticketshop/pkg/aws"
	"ticketshop/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const forceCloseRequired = 2

// OrderService orchestrates the ticket purchase lifecycle: coupon
// submission, order creation, payment-link issuance and webhook-driven
// payment confirmation.
type OrderService interface {
	SubmitCoupon(ctx context.Context, channelID, code string) (*models.CouponSnapshot, *ServiceError)
	CreateOrder(ctx context.Context, channelID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError)
	LatestOrder(ctx context.Context, channelID string) (*models.Order, *ServiceError)
	IssuePaymentLink(ctx context.Context, orderID uuid.UUID, method models.PaymentMethod) (*models.Order, *ServiceError)
	// ConfirmPayment applies a normalized provider notice. The bool is true
	// only for the call that performed the pending -> paid transition;
	// duplicates and notices for unknown orders are no-ops.
	ConfirmPayment(ctx context.Context, notice models.PaymentNotice) (*models.Order, bool)
	ForceClose(ctx context.Context, orderID uuid.UUID) (int, bool, *ServiceError)
}

type orderServiceImpl struct {
	orderRepo   repository.OrderRepository
	couponRepo  repository.CouponRepository
	pendingRepo repository.PendingCouponRepository

	stripe StripeGateway
	crypto CryptoGateway

	producer    kafka.ProducerAPI
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string

	invoices InvoiceRenderer
	chat     ChatNotifier

	publicBaseURL string
	logger        *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	orderRepo repository.OrderRepository,
	couponRepo repository.CouponRepository,
	pendingRepo repository.PendingCouponRepository,
	stripe StripeGateway,
	crypto CryptoGateway,
	producer kafka.ProducerAPI,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	invoices InvoiceRenderer,
	chat ChatNotifier,
	publicBaseURL string,
	logger *zap.Logger,
) OrderService {
	return &orderServiceImpl{
		orderRepo:     orderRepo,
		couponRepo:    couponRepo,
		pendingRepo:   pendingRepo,
		stripe:        stripe,
		crypto:        crypto,
		producer:      producer,
		snsClient:     snsClient,
		snsTopicArn:   snsTopicArn,
		invoices:      invoices,
		chat:          chat,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// SubmitCoupon validates a code against the live ledger and stores a
// snapshot as the channel's pending coupon, overwriting any earlier one.
func (s *orderServiceImpl) SubmitCoupon(ctx context.Context, channelID, code string) (*models.CouponSnapshot, *ServiceError) {
	coupon, err := s.couponRepo.FindUsableByCode(ctx, code)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Coupon not found or no longer usable"}
	}

	snap := coupon.Snapshot()
	if err := s.pendingRepo.Set(ctx, channelID, snap); err != nil {
		s.logger.Error("Failed to store pending coupon", zap.String("channel_id", channelID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to store coupon selection"}
	}

	s.logger.Info("Pending coupon set",
		zap.String("channel_id", channelID),
		zap.String("code", snap.Code),
	)
	return &snap, nil
}

// CreateOrder builds and persists a pending order for the selected product,
// consuming the channel's pending coupon. The association is cleared even
// when resolution fails so a stale entry can never attach to a later,
// unrelated product.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, channelID string, req *models.CreateOrderRequest) (*models.Order, *ServiceError) {
	pending, err := s.pendingRepo.Get(ctx, channelID)
	if err != nil {
		s.logger.Error("Failed to read pending coupon", zap.String("channel_id", channelID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to read coupon selection"}
	}
	if clearErr := s.pendingRepo.Clear(ctx, channelID); clearErr != nil {
		s.logger.Warn("Failed to clear pending coupon", zap.String("channel_id", channelID), zap.Error(clearErr))
	}

	var snap *models.CouponSnapshot
	if pending != nil {
		// Re-resolve against the live ledger; a coupon that went inactive or
		// exhausted since submission is dropped silently.
		live, findErr := s.couponRepo.FindUsableByCode(ctx, pending.Code)
		if findErr != nil {
			s.logger.Info("Pending coupon no longer valid, dropping",
				zap.String("channel_id", channelID),
				zap.String("code", pending.Code),
			)
		} else {
			cs := live.Snapshot()
			snap = &cs
		}
	}

	quote := ApplyCoupon(req.Product.Price, snap)

	order := &models.Order{
		ID:             uuid.New(),
		ChannelID:      channelID,
		BuyerID:        req.BuyerID,
		Status:         models.OrderStatusPending,
		ProductID:      req.Product.ID,
		ProductName:    req.Product.Name,
		ProductPrice:   req.Product.Price,
		OriginalAmount: round2(req.Product.Price),
		DiscountAmount: quote.Discount,
		TotalAmount:    quote.Total,
	}
	if snap != nil {
		order.SetCoupon(*snap)
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to persist order", zap.String("channel_id", channelID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to create order"}
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("channel_id", channelID),
		zap.Float64("total", order.TotalAmount),
		zap.Bool("coupon", snap != nil),
	)
	return order, nil
}

// LatestOrder returns the most recent order opened in a channel.
func (s *orderServiceImpl) LatestOrder(ctx context.Context, channelID string) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindLatestByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || err.Error() == "record not found" {
			return nil, &ServiceError{StatusCode: 404, Message: "No order found for this ticket"}
		}
		s.logger.Error("Failed to fetch latest order", zap.String("channel_id", channelID), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to fetch order"}
	}
	return order, nil
}

// IssuePaymentLink requests a hosted payment link from the chosen provider
// and records it on the order. Re-issuing overwrites the earlier link and
// never touches status.
func (s *orderServiceImpl) IssuePaymentLink(ctx context.Context, orderID uuid.UUID, method models.PaymentMethod) (*models.Order, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
	}

	var url, txID, provider string
	switch method {
	case models.PaymentMethodStripe:
		provider = "stripe"
		url, txID, err = s.stripe.CreateCheckoutLink(order, s.publicBaseURL+"/payments/success")
	case models.PaymentMethodCrypto:
		provider = "cryptopay"
		description := fmt.Sprintf("%s (order %s)", order.ProductName, order.ID)
		url, txID, err = s.crypto.RequestPaymentLink(ctx, order.ID.String(), order.TotalAmount, description, s.publicBaseURL+"/webhooks/crypto")
	default:
		return nil, &ServiceError{StatusCode: 400, Message: "Unknown payment method"}
	}
	if err != nil {
		// Order stays pending with no link attached.
		s.logger.Error("Payment provider request failed",
			zap.String("order_id", order.ID.String()),
			zap.String("provider", provider),
			zap.Error(err),
		)
		return nil, &ServiceError{StatusCode: 502, Message: "Payment provider request failed"}
	}

	found, err := s.orderRepo.UpdatePaymentLink(ctx, orderID, string(method), provider, url, txID)
	if err != nil {
		s.logger.Error("Failed to record payment link", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to record payment link"}
	}
	if !found {
		return nil, &ServiceError{StatusCode: 404, Message: "Order not found"}
	}

	methodStr := string(method)
	order.PaymentMethod = &methodStr
	order.PaymentProvider = &provider
	order.PaymentURL = &url
	order.TransactionID = &txID

	s.logger.Info("Payment link issued",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", provider),
	)
	return order, nil
}

// ConfirmPayment is the idempotency boundary for provider webhooks. Unknown
// orders are swallowed, duplicate deliveries return the stored order
// unchanged, and downstream effects fire exactly once per genuine
// transition.
func (s *orderServiceImpl) ConfirmPayment(ctx context.Context, notice models.PaymentNotice) (*models.Order, bool) {
	if !notice.Paid {
		s.logger.Info("Ignoring non-paid payment notice",
			zap.String("order_id", notice.OrderID),
			zap.String("provider", notice.Provider),
		)
		return nil, false
	}

	id, err := uuid.Parse(notice.OrderID)
	if err != nil {
		s.logger.Warn("Payment notice with malformed order id",
			zap.String("order_id", notice.OrderID),
			zap.String("provider", notice.Provider),
		)
		return nil, false
	}

	order, transitioned, err := s.orderRepo.ConfirmPaid(ctx, id, repository.PaymentConfirmation{
		Method:        notice.Method,
		Provider:      notice.Provider,
		TransactionID: notice.TransactionID,
		PaidAmount:    notice.PaidAmount,
	})
	if err != nil {
		// Webhook payloads for unknown orders must never propagate.
		s.logger.Warn("Payment notice for unknown order",
			zap.String("order_id", notice.OrderID),
			zap.String("provider", notice.Provider),
			zap.Error(err),
		)
		return nil, false
	}

	if !transitioned {
		s.logger.Info("Skipping duplicate payment confirmation",
			zap.String("order_id", order.ID.String()),
			zap.String("provider", notice.Provider),
		)
		return order, false
	}

	if snap := order.Coupon(); snap != nil {
		// Live re-check is authoritative; a coupon that went invalid between
		// order creation and payment must not block confirmation, and the
		// flag set during the transition guarantees no retry on duplicates.
		recorded, useErr := s.couponRepo.RecordUse(ctx, snap.Code)
		if useErr != nil {
			s.logger.Error("Failed to record coupon use",
				zap.String("order_id", order.ID.String()),
				zap.String("code", snap.Code),
				zap.Error(useErr),
			)
		} else if !recorded {
			s.logger.Warn("Coupon no longer usable at confirmation, skipping increment",
				zap.String("order_id", order.ID.String()),
				zap.String("code", snap.Code),
			)
		}
	}

	s.logger.Info("Order paid",
		zap.String("order_id", order.ID.String()),
		zap.String("provider", notice.Provider),
		zap.Float64("paid_amount", notice.PaidAmount),
	)

	go s.dispatchPaidEffects(order)
	return order, true
}

// dispatchPaidEffects publishes events and triggers invoice rendering and
// the buyer notification. It runs on its own goroutine with per-call
// timeouts detached from the webhook request context, so the provider is
// acknowledged immediately regardless of downstream latency or failures.
func (s *orderServiceImpl) dispatchPaidEffects(order *models.Order) {
	event := models.OrderPaidEvent{
		EventType: "order_paid",
		OrderID:   order.ID.String(),
		ChannelID: order.ChannelID,
		BuyerID:   order.BuyerID,
		Amount:    order.TotalAmount,
		Timestamp: time.Now().UTC(),
	}
	if order.CouponCode != nil {
		event.CouponCode = *order.CouponCode
	}
	if order.PaymentProvider != nil {
		event.Provider = *order.PaymentProvider
	}
	if order.TransactionID != nil {
		event.TransactionID = *order.TransactionID
	}

	if s.producer != nil {
		if err := s.producer.PublishOrderPaid(event); err != nil {
			s.logger.Error("Failed to publish order_paid event", zap.Error(err))
		}
	}

	// Best-effort SNS alongside Kafka.
	if s.snsClient != nil && s.snsTopicArn != "" {
		snsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if data, err := json.Marshal(event); err == nil {
			if err := s.snsClient.Publish(snsCtx, s.snsTopicArn, data); err != nil {
				s.logger.Warn("SNS publish failed", zap.Error(err))
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	documentURL := ""
	if s.invoices != nil {
		url, err := s.invoices.Render(ctx, order)
		if err != nil {
			s.logger.Warn("Invoice rendering failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		} else {
			documentURL = url
		}
	}

	if s.chat != nil {
		msg := fmt.Sprintf("Payment received for %s, total $%.2f. Thank you!", order.ProductName, order.TotalAmount)
		if documentURL != "" {
			msg += " Invoice: " + documentURL
		}
		if err := s.chat.Notify(ctx, order.ChannelID, msg); err != nil {
			s.logger.Warn("Ticket notification failed", zap.String("channel_id", order.ChannelID), zap.Error(err))
		}
	}
}

// ForceClose bumps the order's close-confirmation counter; the ticket is
// closable once the counter reaches the required number of confirmations.
func (s *orderServiceImpl) ForceClose(ctx context.Context, orderID uuid.UUID) (int, bool, *ServiceError) {
	count, err := s.orderRepo.IncrementForceClose(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || err.Error() == "record not found" {
			return 0, false, &ServiceError{StatusCode: 404, Message: "Order not found"}
		}
		s.logger.Error("Failed to record close confirmation", zap.String("order_id", orderID.String()), zap.Error(err))
		return 0, false, &ServiceError{StatusCode: 500, Message: "Failed to record close confirmation"}
	}
	return count, count >= forceCloseRequired, nil
}
