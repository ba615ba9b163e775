package services

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/http"

	"ticketshop/models"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeGateway abstracts the Stripe API surface the service needs, so
// controllers can be tested without Stripe credentials.
type StripeGateway interface {
	CreateCheckoutLink(order *models.Order, successURL string) (url, transactionID string, err error)
	ParseWebhook(r *http.Request) (stripe.Event, error)
}

type StripeService struct {
	SecretKey  string
	WebhookKey string
}

func NewStripeService(secretKey, webhookKey string) *StripeService {
	stripe.Key = secretKey
	return &StripeService{SecretKey: secretKey, WebhookKey: webhookKey}
}

// CreateCheckoutLink opens a Stripe Checkout Session for the order total and
// returns the hosted payment URL with the session id as transaction id. The
// order id rides along in metadata so the webhook can find its way back.
func (s *StripeService) CreateCheckoutLink(order *models.Order, successURL string) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(toCents(order.TotalAmount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(order.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("channel_id", order.ChannelID)

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, sess.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}

// toCents converts a USD amount to Stripe's integer minor units.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
