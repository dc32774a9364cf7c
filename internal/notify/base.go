package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

// baseNotifier carries the name, toggle and event filter shared by every
// provider. Concrete notifiers embed it and add only their Send method.
type baseNotifier struct {
	name    string
	enabled bool
	events  []model.Event
}

// Name returns the human-readable name of the notifier.
func (b *baseNotifier) Name() string { return b.name }

// IsEnabled reports whether this notifier is active.
func (b *baseNotifier) IsEnabled() bool { return b.enabled }

// ShouldNotify reports whether this notifier should fire for the given event.
func (b *baseNotifier) ShouldNotify(event model.Event) bool {
	return containsEvent(b.events, event)
}

// postJSON marshals payload and POSTs it to url. Responses with a 4xx or
// 5xx status are returned as errors with a snippet of the body.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
