package twitch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/wrosek/twitch-drops-go/internal/auth"
	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Pulser sends the minute-watched telemetry pulses that accrue drop
// progress and touches the HLS endpoint so the account appears as a
// logged-in viewer.
type Pulser struct {
	httpClient *http.Client
	auth       auth.Provider
	log        *logger.Logger

	usherURL string
}

// NewPulser creates a Pulser sharing the given HTTP client pool.
func NewPulser(httpClient *http.Client, authProvider auth.Provider, log *logger.Logger) *Pulser {
	return &Pulser{
		httpClient: httpClient,
		auth:       authProvider,
		log:        log,
		usherURL:   constants.UsherURL,
	}
}

// GeneratePayload builds the base64-encoded minute-watched event for a
// watch target. The wire format is a one-element JSON array.
func (p *Pulser) GeneratePayload(target model.WatchTarget) (string, error) {
	event := []map[string]any{{
		"event": "minute-watched",
		"properties": map[string]any{
			"broadcast_id": target.BroadcastID,
			"channel_id":   target.ChannelID,
			"channel":      target.ChannelLogin,
			"hidden":       false,
			"live":         true,
			"location":     "channel",
			"logged_in":    true,
			"muted":        false,
			"player":       "site",
			"user_id":      p.auth.UserID(),
		},
	}}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshaling minute-watched payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(jsonData), nil
}

// SendPulse POSTs the minute-watched payload to the target's telemetry
// URL. Success is exactly HTTP 204; anything else is a pulse failure,
// which callers treat as non-fatal.
func (p *Pulser) SendPulse(ctx context.Context, target model.WatchTarget) error {
	payload, err := p.GeneratePayload(target)
	if err != nil {
		return err
	}

	form := url.Values{"data": {payload}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.TelemetryURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating pulse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", constants.DefaultUserAgent)
	req.Header.Set("Client-Id", constants.ClientIDAndroid)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending pulse for %s: %w", target.ChannelLogin, err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("pulse for %s returned status %d", target.ChannelLogin, resp.StatusCode)
	}

	p.log.Debug("Sent minute-watched pulse", "channel", target.ChannelLogin)
	return nil
}

// TouchHLS fetches the channel's HLS playlist with the current stream
// token and signature, discarding the body. The request alone registers
// the account as an active viewer right before the pulse.
func (p *Pulser) TouchHLS(ctx context.Context, target model.WatchTarget) error {
	playlistURL := fmt.Sprintf(
		"%s/api/channel/hls/%s.m3u8?sig=%s&token=%s&allow_source=true&allow_audio_only=true&fast_bread=true",
		p.usherURL, target.ChannelLogin,
		url.QueryEscape(target.StreamSig), url.QueryEscape(target.StreamToken),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		return fmt.Errorf("creating HLS request: %w", err)
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("touching HLS for %s: %w", target.ChannelLogin, err)
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, 256<<10))
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HLS touch for %s returned status %d", target.ChannelLogin, resp.StatusCode)
	}

	p.log.Debug("Touched HLS playlist", "channel", target.ChannelLogin)
	return nil
}
