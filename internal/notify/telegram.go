package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramSink sends messages through the Telegram bot API.
type TelegramSink struct {
	client *resty.Client
	token  string
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramSink creates a sink for the bot identified by token.
func NewTelegramSink(baseURL, token string, timeout time.Duration) *TelegramSink {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &TelegramSink{client: client, token: token}
}

// Send posts text to the chat identified by destination.
func (s *TelegramSink) Send(ctx context.Context, destination, text string) error {
	var result telegramResponse

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("token", s.token).
		SetBody(map[string]any{
			"chat_id":                  destination,
			"text":                     text,
			"disable_web_page_preview": true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram send to %s: status %d: %s", destination, resp.StatusCode(), result.Description)
	}
	return nil
}
