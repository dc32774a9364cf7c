package twitch

import (
	"context"

	"github.com/wrosek/twitch-drops-go/internal/model"
)

// Telemetry is the pulser interface consumed by the watch loop.
// *Pulser satisfies it.
type Telemetry interface {
	SendPulse(ctx context.Context, target model.WatchTarget) error
	TouchHLS(ctx context.Context, target model.WatchTarget) error
}

// Scraper resolves telemetry URLs for channels. *Client satisfies it.
type Scraper interface {
	FetchTelemetryURL(ctx context.Context, channelLogin string) (string, error)
}

var (
	_ Telemetry = (*Pulser)(nil)
	_ Scraper   = (*Client)(nil)
)
