package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ChatNotifier delivers messages into ticket channels through the chat
// gateway. Delivery is best-effort; callers log failures and continue.
type ChatNotifier interface {
	Notify(ctx context.Context, channelID, message string) error
}

// HTTPChatNotifier posts messages to the chat gateway service.
type HTTPChatNotifier struct {
	BaseURL string
	Token   string
}

func NewHTTPChatNotifier(baseURL, token string) *HTTPChatNotifier {
	return &HTTPChatNotifier{BaseURL: baseURL, Token: token}
}

func (n *HTTPChatNotifier) Notify(ctx context.Context, channelID, message string) error {
	body, err := json.Marshal(map[string]string{
		"channel_id": channelID,
		"content":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+n.Token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat gateway returned %d", resp.StatusCode)
	}
	return nil
}
