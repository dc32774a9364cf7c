package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Discord sends notifications via a Discord webhook.
type Discord struct {
	baseNotifier
	webhookURL string
	httpClient *http.Client
}

// Send posts an embed message to the configured Discord webhook.
func (d *Discord) Send(ctx context.Context, _ model.Event, title, message string) error {
	payload := map[string]any{
		"username": "Twitch Drops Miner",
		"embeds": []map[string]any{
			{
				"title":       title,
				"description": message,
				"color":       6570404, // Twitch purple
			},
		},
	}

	if err := postJSON(ctx, d.httpClient, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}
