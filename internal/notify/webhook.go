package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Webhook sends notifications to a user-supplied HTTP endpoint. POST
// delivers a JSON body; GET appends the fields as query parameters.
type Webhook struct {
	baseNotifier
	url        string
	method     string
	httpClient *http.Client
}

// Send delivers a notification via the configured webhook endpoint.
func (w *Webhook) Send(ctx context.Context, event model.Event, title, message string) error {
	switch strings.ToUpper(w.method) {
	case http.MethodPost:
		payload := map[string]string{
			"event":   string(event),
			"title":   title,
			"message": message,
		}
		if err := postJSON(ctx, w.httpClient, w.url, payload); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		return nil

	case http.MethodGet:
		return w.sendGet(ctx, event, title, message)

	default:
		return fmt.Errorf("webhook: unsupported method %q (use GET or POST)", w.method)
	}
}

func (w *Webhook) sendGet(ctx context.Context, event model.Event, title, message string) error {
	u, err := url.Parse(w.url)
	if err != nil {
		return fmt.Errorf("webhook: parse url: %w", err)
	}
	q := u.Query()
	q.Set("event_name", string(event))
	q.Set("title", title)
	q.Set("message", message)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
