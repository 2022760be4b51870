package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"BCRPSentinel/internal/backoff"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	maxReplyBody   = 512
)

// TelegramNotifier delivers refresh reports and command replies through the
// Telegram Bot API. Without a bot token and chat id it is disabled and every
// call is a no-op.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	APIBase  string
	Client   *http.Client
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		APIBase:  defaultAPIBase,
		Client: &http.Client{
			// must outlast the getUpdates long poll
			Timeout:   pollTimeout + 10*time.Second,
			Transport: transport,
		},
	}
}

// Enabled reports whether messages are actually delivered.
func (t *TelegramNotifier) Enabled() bool {
	return t != nil && t.BotToken != "" && t.ChatID != ""
}

// apiError is a non-ok Bot API reply.
type apiError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// call posts payload as JSON to a Bot API method and decodes the result field into out.
func (t *TelegramNotifier) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	base := t.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/bot%s/%s", base, t.BotToken, method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s reply: %w", method, err)
	}
	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || resp.StatusCode != http.StatusOK || !envelope.OK {
		desc := envelope.Description
		if desc == "" {
			if len(raw) > maxReplyBody {
				raw = raw[:maxReplyBody]
			}
			desc = string(raw)
		}
		return &apiError{Method: method, StatusCode: resp.StatusCode, Description: desc}
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Send delivers an HTML message to the configured chat.
func (t *TelegramNotifier) Send(text string) error {
	return t.SendContext(context.Background(), text)
}

// SendContext is Send bounded by ctx.
func (t *TelegramNotifier) SendContext(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}
	return t.call(ctx, "sendMessage", map[string]string{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

// SendWithRetry makes up to maxRetries+1 delivery attempts, backing off
// 1s, 2s, 4s... between them.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	if !t.Enabled() {
		return nil
	}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = t.SendContext(ctx, text); lastErr == nil {
			return nil
		}
		if i == maxRetries {
			break
		}
		delay := backoff.Exponential(time.Second, i)
		log.Printf("[WARN] Telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, lastErr, delay)
		if err := backoff.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}
