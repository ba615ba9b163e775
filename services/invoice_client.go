package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ticketshop/models"
)

// InvoiceRenderer produces a purchase invoice for a paid order. Rendering is
// an external collaborator; failures are best-effort from the caller's side.
type InvoiceRenderer interface {
	Render(ctx context.Context, order *models.Order) (documentURL string, err error)
}

// HTTPInvoiceRenderer posts the order snapshot to the invoice service.
type HTTPInvoiceRenderer struct {
	BaseURL string
}

func NewHTTPInvoiceRenderer(baseURL string) *HTTPInvoiceRenderer {
	return &HTTPInvoiceRenderer{BaseURL: baseURL}
}

func (r *HTTPInvoiceRenderer) Render(ctx context.Context, order *models.Order) (string, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/invoices/render", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("invoice service returned %d", resp.StatusCode)
	}

	var out struct {
		DocumentURL string `json:"document_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.DocumentURL, nil
}
