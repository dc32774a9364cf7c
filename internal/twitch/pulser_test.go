package twitch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/logger"
	"github.com/wrosek/twitch-drops-go/internal/model"
)

type fakeAuth struct{}

func (fakeAuth) AuthToken() string                  { return "tok" }
func (fakeAuth) UserID() string                     { return "42" }
func (fakeAuth) DeviceID() string                   { return "0123456789abcdef0123456789abcdef" }
func (fakeAuth) ClientSession() string              { return "0123456789abcdef" }
func (fakeAuth) Username() string                   { return "miner" }
func (fakeAuth) GetAuthHeaders() map[string]string  { return map[string]string{} }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.Setup(logger.Config{Level: slog.LevelError, Colored: false})
	if err != nil {
		t.Fatalf("logger setup: %v", err)
	}
	return log
}

func testTarget(telemetryURL string) model.WatchTarget {
	return model.WatchTarget{
		ChannelID:    "ch-1",
		ChannelLogin: "streamer",
		BroadcastID:  "bc-1",
		GameName:     "Rust",
		TelemetryURL: telemetryURL,
		StreamToken:  `{"channel":"streamer"}`,
		StreamSig:    "sig123",
	}
}

func TestGeneratePayloadShape(t *testing.T) {
	p := NewPulser(http.DefaultClient, fakeAuth{}, testLogger(t))

	encoded, err := p.GeneratePayload(testTarget("https://example/pulse"))
	if err != nil {
		t.Fatalf("GeneratePayload: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}

	var events []struct {
		Event      string         `json:"event"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(decoded, &events); err != nil {
		t.Fatalf("payload is not a JSON array: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("payload has %d events, want 1", len(events))
	}
	if events[0].Event != "minute-watched" {
		t.Errorf("event = %q", events[0].Event)
	}

	props := events[0].Properties
	if len(props) != 10 {
		t.Errorf("properties count = %d, want 10", len(props))
	}
	for _, key := range []string{"broadcast_id", "channel_id", "channel", "user_id", "player", "location"} {
		if _, ok := props[key].(string); !ok {
			t.Errorf("property %q missing or not a string", key)
		}
	}
	for key, want := range map[string]bool{
		"hidden": false, "live": true, "logged_in": true, "muted": false,
	} {
		if got, ok := props[key].(bool); !ok || got != want {
			t.Errorf("property %q = %v, want %v", key, props[key], want)
		}
	}
	if props["user_id"] != "42" {
		t.Errorf("user_id = %v", props["user_id"])
	}
}

func TestSendPulse(t *testing.T) {
	var gotData string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotData = r.PostForm.Get("data")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewPulser(srv.Client(), fakeAuth{}, testLogger(t))
	if err := p.SendPulse(context.Background(), testTarget(srv.URL)); err != nil {
		t.Fatalf("SendPulse: %v", err)
	}
	if _, err := base64.StdEncoding.DecodeString(gotData); err != nil {
		t.Errorf("posted data is not base64: %v", err)
	}
}

func TestSendPulseNon204IsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPulser(srv.Client(), fakeAuth{}, testLogger(t))
	if err := p.SendPulse(context.Background(), testTarget(srv.URL)); err == nil {
		t.Error("expected error for non-204 status")
	}
}

func TestTouchHLS(t *testing.T) {
	var gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer srv.Close()

	p := NewPulser(srv.Client(), fakeAuth{}, testLogger(t))
	p.usherURL = srv.URL

	if err := p.TouchHLS(context.Background(), testTarget("unused")); err != nil {
		t.Fatalf("TouchHLS: %v", err)
	}
	if !strings.Contains(gotURL, "/api/channel/hls/streamer.m3u8") {
		t.Errorf("playlist path = %q", gotURL)
	}
	if !strings.Contains(gotURL, "sig=sig123") || !strings.Contains(gotURL, "fast_bread=true") {
		t.Errorf("playlist query = %q", gotURL)
	}
}
