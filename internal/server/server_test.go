package server

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/logger"
)

func testServer(t *testing.T) *AnalyticsServer {
	t.Helper()
	log, err := logger.Setup(logger.Config{Level: slog.LevelError})
	if err != nil {
		t.Fatalf("logger setup: %v", err)
	}
	return NewAnalyticsServer("127.0.0.1:0", log)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)
	s.SetStatusFunc(func() MinerStatus {
		return MinerStatus{
			Account:        "miner",
			Running:        true,
			Mining:         true,
			Channel:        "rustplayer",
			Game:           "Rust",
			Drop:           "Helmet",
			Progress:       25,
			MinutesWatched: 30,
			CampaignCount:  4,
		}
	})

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var got MinerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Game != "Rust" || got.Drop != "Helmet" || !got.Mining {
		t.Errorf("status = %+v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestDashboardServed(t *testing.T) {
	s := testServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Twitch Drops Miner") {
		t.Error("dashboard HTML missing title")
	}
}
