// Package twitch provides the high-level platform facade: telemetry URL
// scraping from channel pages and the minute-watched pulser that earns
// drop progress.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/auth"
	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/gql"
	"github.com/wrosek/twitch-drops-go/internal/logger"
)

// ErrTelemetryNotFound is returned when neither the channel page nor its
// settings.js carry a telemetry beacon URL. Callers fall back to a
// best-effort URL and keep mining.
var ErrTelemetryNotFound = errors.New("telemetry URL not found")

// Pre-compiled regexes for fetchTelemetryURL.
var (
	beaconURLRegex   = regexp.MustCompile(`"beacon_?url": ?"(https://video-edge-[\.\w\-/]+\.ts(?:\?allow_stream=true)?)"`)
	settingsURLRegex = regexp.MustCompile(`(https://static\.twitchcdn\.net/config/settings.*?js|https://assets\.twitch\.tv/config/settings.*?\.js)`)
)

// telemetryCacheTTL is how long a cached telemetry URL remains valid.
// The URL rarely changes during a stream session; re-scraping the full
// channel page per watch iteration would be wasteful.
const telemetryCacheTTL = 6 * time.Hour

type telemetryCache struct {
	mu      sync.Mutex
	entries map[string]telemetryCacheEntry
}

type telemetryCacheEntry struct {
	url       string
	fetchedAt time.Time
}

func (tc *telemetryCache) get(login string) (string, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	entry, ok := tc.entries[login]
	if !ok {
		return "", false
	}
	if time.Since(entry.fetchedAt) > telemetryCacheTTL {
		delete(tc.entries, login)
		return "", false
	}
	return entry.url, true
}

func (tc *telemetryCache) set(login, url string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.entries[login] = telemetryCacheEntry{url: url, fetchedAt: time.Now()}
}

func (tc *telemetryCache) prune() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	for login, entry := range tc.entries {
		if time.Since(entry.fetchedAt) > telemetryCacheTTL {
			delete(tc.entries, login)
		}
	}
}

// Client is the high-level platform facade combining auth and the GQL
// client, plus the channel-page scraper for telemetry URLs.
type Client struct {
	Auth *auth.Authenticator
	GQL  *gql.Client
	Log  *logger.Logger

	twitchURL     string
	telemetryURLs *telemetryCache
}

// NewClient creates the platform facade on top of an authenticated GQL
// client. The GQL client's HTTP pool is shared by the scraper and pulser.
func NewClient(authenticator *auth.Authenticator, gqlClient *gql.Client, log *logger.Logger) *Client {
	return &Client{
		Auth:          authenticator,
		GQL:           gqlClient,
		Log:           log,
		twitchURL:     constants.TwitchURL,
		telemetryURLs: &telemetryCache{entries: make(map[string]telemetryCacheEntry)},
	}
}

// FetchTelemetryURL scrapes the minute-watched beacon URL for a channel.
// It scans the channel page HTML first; when the beacon is not inlined it
// locates the settings.js asset and scans that. Results are cached.
func (c *Client) FetchTelemetryURL(ctx context.Context, channelLogin string) (string, error) {
	if cached, ok := c.telemetryURLs.get(channelLogin); ok {
		c.Log.Debug("Using cached telemetry URL", "channel", channelLogin)
		return cached, nil
	}

	pageURL := fmt.Sprintf("%s/%s", c.twitchURL, channelLogin)
	body, err := c.fetchPage(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetching channel page for %s: %w", channelLogin, err)
	}

	if m := beaconURLRegex.FindSubmatch(body); len(m) >= 2 {
		url := string(m[1])
		c.telemetryURLs.set(channelLogin, url)
		c.telemetryURLs.prune()
		c.Log.Debug("Found telemetry URL in channel page", "channel", channelLogin)
		return url, nil
	}

	settingsMatch := settingsURLRegex.Find(body)
	if settingsMatch == nil {
		return "", fmt.Errorf("%w: no settings.js reference on channel page for %s",
			ErrTelemetryNotFound, channelLogin)
	}

	settingsBody, err := c.fetchPage(ctx, string(settingsMatch))
	if err != nil {
		return "", fmt.Errorf("fetching settings.js for %s: %w", channelLogin, err)
	}

	if m := beaconURLRegex.FindSubmatch(settingsBody); len(m) >= 2 {
		url := string(m[1])
		c.telemetryURLs.set(channelLogin, url)
		c.telemetryURLs.prune()
		c.Log.Debug("Found telemetry URL in settings.js", "channel", channelLogin)
		return url, nil
	}

	return "", fmt.Errorf("%w: channel %s", ErrTelemetryNotFound, channelLogin)
}

// FallbackTelemetryURL builds a best-effort telemetry URL used when
// scraping fails. Pulses against it may not register but keep the loop
// alive until the next scrape succeeds.
func FallbackTelemetryURL(channelLogin string) string {
	return fmt.Sprintf("https://video-edge-%s.twitch.tv/hls", channelLogin)
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", constants.UserAgents["Linux"]["FIREFOX"])

	resp, err := c.GQL.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}
