package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"zenpress/internal/domain"
	"zenpress/internal/ports"
)

// messageLimit keeps composed posts under the Telegram 4096-char cap with
// headroom for markup.
const messageLimit = 3900

// Notifier delivers drafts to a Telegram chat via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type sendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendDraft posts the composed draft and returns the Telegram message id.
func (n *Notifier) SendDraft(ctx context.Context, article domain.Article, draft domain.Draft) (string, error) {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return "", fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", ComposeMessage(draft.Title, draft.Lead, draft.Body, article.URL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telegram error: %s", resp.Status)
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !decoded.OK {
		return "", fmt.Errorf("telegram rejected message")
	}
	return fmt.Sprintf("%d", decoded.Result.MessageID), nil
}

// ComposeMessage joins title, lead, body, and the source link, truncating
// to the Telegram message limit.
func ComposeMessage(title, lead, body, sourceURL string) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{title, lead, body} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	parts = append(parts, "Источник: "+sourceURL)

	message := strings.Join(parts, "\n\n")
	runes := []rune(message)
	if len(runes) > messageLimit {
		message = string(runes[:messageLimit-3]) + "..."
	}
	return message
}
