package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"ticketshop/models"
	"ticketshop/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// WebhookController receives payment-provider callbacks. After a provider's
// authenticity check passes, every condition (unknown order, duplicate
// delivery, malformed payload) is acknowledged with 200 so the provider does
// not retry-storm the endpoint.
type WebhookController struct {
	orderService services.OrderService
	stripe       services.StripeGateway
	crypto       services.CryptoGateway
	logger       *zap.Logger
}

// NewWebhookController creates a new WebhookController.
func NewWebhookController(orderService services.OrderService, stripeGw services.StripeGateway, cryptoGw services.CryptoGateway, logger *zap.Logger) *WebhookController {
	return &WebhookController{
		orderService: orderService,
		stripe:       stripeGw,
		crypto:       cryptoGw,
		logger:       logger,
	}
}

// StripeWebhook handles POST /webhooks/stripe.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	event, err := wc.stripe.ParseWebhook(c.Request)
	if err != nil {
		wc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	wc.logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	switch event.Type {
	case "checkout.session.completed":
		wc.handleCheckoutCompleted(c, event)
	default:
		wc.logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (wc *WebhookController) handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		wc.logger.Error("Failed to unmarshal checkout session", zap.Error(err))
		return
	}

	orderID := sess.Metadata["order_id"]
	if orderID == "" {
		wc.logger.Warn("Missing order_id in checkout session metadata",
			zap.String("session_id", sess.ID),
		)
		return
	}

	wc.orderService.ConfirmPayment(c.Request.Context(), models.PaymentNotice{
		OrderID:       orderID,
		Paid:          sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		TransactionID: sess.ID,
		PaidAmount:    float64(sess.AmountTotal) / 100,
		Method:        string(models.PaymentMethodStripe),
		Provider:      "stripe",
	})
}

// CryptoWebhook handles POST /webhooks/crypto.
func (wc *WebhookController) CryptoWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		wc.logger.Warn("Failed to read crypto webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if !wc.crypto.VerifySignature(payload, signature) {
		wc.logger.Warn("Crypto webhook signature verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var body services.CryptoWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		wc.logger.Warn("Malformed crypto webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if body.OrderID == "" {
		wc.logger.Warn("Crypto webhook missing order id", zap.String("invoice_id", body.InvoiceID))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	wc.logger.Info("Processing crypto webhook",
		zap.String("invoice_id", body.InvoiceID),
		zap.String("order_id", body.OrderID),
		zap.String("status", body.Status),
	)

	wc.orderService.ConfirmPayment(c.Request.Context(), models.PaymentNotice{
		OrderID:       body.OrderID,
		Paid:          body.Status == "paid",
		TransactionID: body.InvoiceID,
		PaidAmount:    body.PaidAmount,
		Method:        string(models.PaymentMethodCrypto),
		Provider:      "cryptopay",
	})

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
