package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/gql"
)

const beaconURL = "https://video-edge-fra02.abs.hls.ttvnw.net/v1/segment/seg-12.ts?allow_stream=true"

func scrapeClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	log := testLogger(t)
	gqlClient, err := gql.NewClient(fakeAuth{}, log, "")
	if err != nil {
		t.Fatalf("gql.NewClient: %v", err)
	}
	c := NewClient(nil, gqlClient, log)
	c.twitchURL = srv.URL
	return c
}

func TestFetchTelemetryURLFromChannelPage(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprintf(w, `<html><script>var cfg = {"beacon_url": "%s"};</script></html>`, beaconURL)
	}))
	defer srv.Close()

	c := scrapeClient(t, srv)
	got, err := c.FetchTelemetryURL(context.Background(), "streamer")
	if err != nil {
		t.Fatalf("FetchTelemetryURL: %v", err)
	}
	if got != beaconURL {
		t.Errorf("url = %q, want %q", got, beaconURL)
	}

	// second call must come from the cache
	if _, err := c.FetchTelemetryURL(context.Background(), "streamer"); err != nil {
		t.Fatalf("cached FetchTelemetryURL: %v", err)
	}
	if hits != 1 {
		t.Errorf("page fetched %d times, want 1", hits)
	}
}

func TestFetchTelemetryURLSettingsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/streamer":
			// page without an inline beacon, pointing at settings.js
			fmt.Fprintf(w, `<script src="https://assets.twitch.tv/config/settings.0123abcd.js"></script>`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	settingsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `window.__twilightSettings = {"beaconUrl":"x","beacon_url":"%s"};`, beaconURL)
	}))
	defer settingsSrv.Close()

	c := scrapeClient(t, srv)
	// the settings regex matches the real CDN host; rewrite requests to it
	c.GQL.HTTPClient().Transport = rewriteTransport{target: settingsSrv, inner: srv}

	got, err := c.FetchTelemetryURL(context.Background(), "streamer")
	if err != nil {
		t.Fatalf("FetchTelemetryURL: %v", err)
	}
	if got != beaconURL {
		t.Errorf("url = %q, want %q", got, beaconURL)
	}
}

// rewriteTransport sends assets.twitch.tv requests to the settings test
// server and everything else to the page server.
type rewriteTransport struct {
	target *httptest.Server
	inner  *httptest.Server
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := rt.inner
	if req.URL.Host == "assets.twitch.tv" {
		base = rt.target
	}
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = base.Listener.Addr().String()
	return http.DefaultTransport.RoundTrip(clone)
}

func TestFetchTelemetryURLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>nothing useful</html>`)
	}))
	defer srv.Close()

	c := scrapeClient(t, srv)
	_, err := c.FetchTelemetryURL(context.Background(), "streamer")
	if !errors.Is(err, ErrTelemetryNotFound) {
		t.Errorf("error = %v, want ErrTelemetryNotFound", err)
	}
}

func TestFallbackTelemetryURL(t *testing.T) {
	got := FallbackTelemetryURL("streamer")
	if got != "https://video-edge-streamer.twitch.tv/hls" {
		t.Errorf("fallback = %q", got)
	}
}

func TestBeaconRegexAcceptsBothSpellings(t *testing.T) {
	for _, body := range []string{
		`"beacon_url": "` + beaconURL + `"`,
		`"beaconurl": "` + beaconURL + `"`,
		`"beacon_url":"` + beaconURL + `"`,
	} {
		m := beaconURLRegex.FindStringSubmatch(body)
		if len(m) < 2 || m[1] != beaconURL {
			t.Errorf("regex did not match %q", body)
		}
	}
}
