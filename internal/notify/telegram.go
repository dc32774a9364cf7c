package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Telegram sends notifications via the Telegram Bot API.
type Telegram struct {
	baseNotifier
	token               string
	chatID              string
	disableNotification bool
	httpClient          *http.Client
}

// Send posts a message to the configured Telegram chat. The title is
// rendered bold above the message body.
func (t *Telegram) Send(ctx context.Context, _ model.Event, title, message string) error {
	text := message
	if title != "" {
		text = fmt.Sprintf("<b>%s</b>\n%s", title, message)
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"disable_notification":     t.disableNotification,
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	if err := postJSON(ctx, t.httpClient, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
