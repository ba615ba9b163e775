package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CryptoGateway abstracts the crypto payment provider.
type CryptoGateway interface {
	RequestPaymentLink(ctx context.Context, orderID string, amount float64, description, callbackURL string) (url, transactionID string, err error)
	VerifySignature(payload []byte, signature string) bool
}

// CryptoInvoice is the provider's response to an invoice creation request.
type CryptoInvoice struct {
	InvoiceID  string `json:"invoice_id"`
	PaymentURL string `json:"payment_url"`
}

// CryptoWebhookPayload is the provider's webhook body.
type CryptoWebhookPayload struct {
	InvoiceID  string  `json:"invoice_id"`
	OrderID    string  `json:"order_id"`
	Status     string  `json:"status"` // "paid", "expired", "underpaid"
	PaidAmount float64 `json:"paid_amount"`
}

// CryptoPayService is an HTTP client for the crypto payment gateway.
type CryptoPayService struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

func NewCryptoPayService(baseURL, apiKey, webhookSecret string) *CryptoPayService {
	return &CryptoPayService{BaseURL: baseURL, APIKey: apiKey, WebhookSecret: webhookSecret}
}

// RequestPaymentLink creates a hosted invoice with the provider and returns
// its payment URL and invoice id.
func (s *CryptoPayService) RequestPaymentLink(ctx context.Context, orderID string, amount float64, description, callbackURL string) (string, string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"order_id":     orderID,
		"amount":       amount,
		"currency":     "USD",
		"description":  description,
		"callback_url": callbackURL,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/invoices", bytes.NewBuffer(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("crypto gateway returned %d", resp.StatusCode)
	}

	var inv CryptoInvoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return "", "", fmt.Errorf("crypto gateway response: %w", err)
	}
	if inv.PaymentURL == "" || inv.InvoiceID == "" {
		return "", "", fmt.Errorf("crypto gateway response missing invoice fields")
	}
	return inv.PaymentURL, inv.InvoiceID, nil
}

// VerifySignature checks the HMAC-SHA256 hex signature of a webhook body.
func (s *CryptoPayService) VerifySignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
