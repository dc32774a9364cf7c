package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/wrosek/twitch-drops-go/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.Setup(logger.Config{Level: slog.LevelError, Colored: false})
	if err != nil {
		t.Fatalf("logger setup: %v", err)
	}
	return log
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	s := &Session{
		AccessToken: "tok123",
		UserID:      456789,
		DeviceID:    "abcdefabcdefabcdefabcdefabcdefab",
		Login:       "miner",
	}
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if *loaded != *s {
		t.Errorf("round trip mismatch: %+v != %+v", loaded, s)
	}
	if !loaded.Valid() {
		t.Error("loaded session not valid")
	}
}

func TestSessionValid(t *testing.T) {
	if (&Session{}).Valid() {
		t.Error("empty session reported valid")
	}
	var nilSession *Session
	if nilSession.Valid() {
		t.Error("nil session reported valid")
	}
}

func TestDeviceCodePollingPendingThenSuccess(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/device":
			json.NewEncoder(w).Encode(DeviceCodeResponse{
				DeviceCode:      "dc1",
				UserCode:        "ABCD-1234",
				VerificationURI: "https://www.twitch.tv/activate",
				ExpiresIn:       1800,
				Interval:        1,
			})
		case "/token":
			if polls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TokenErrorResponse{Status: 400, Message: "authorization_pending"})
				return
			}
			json.NewEncoder(w).Encode(TokenResponse{AccessToken: "granted-token"})
		case "/validate":
			if got := r.Header.Get("Authorization"); got != "OAuth granted-token" {
				t.Errorf("validate Authorization = %q", got)
			}
			fmt.Fprint(w, `{"login":"miner","user_id":"42"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewAuthenticator(filepath.Join(t.TempDir(), "auth.json"), testLogger(t), srv.Client())
	a.deviceCodeURL = srv.URL + "/device"
	a.tokenURL = srv.URL + "/token"
	a.validateURL = srv.URL + "/validate"

	var codeShown string
	err := a.Login(context.Background(), func(userCode, uri string) {
		codeShown = userCode
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if codeShown != "ABCD-1234" {
		t.Errorf("user code = %q", codeShown)
	}
	if a.AuthToken() != "granted-token" || a.UserID() != "42" || a.Username() != "miner" {
		t.Errorf("session state = %q/%q/%q", a.AuthToken(), a.UserID(), a.Username())
	}

	// a fresh authenticator must restore the saved session without polling
	restored := NewAuthenticator(a.sessionPath, testLogger(t), srv.Client())
	restored.validateURL = srv.URL + "/validate"
	if err := restored.Login(context.Background(), nil); err != nil {
		t.Fatalf("restore Login: %v", err)
	}
	if restored.AuthToken() != "granted-token" {
		t.Errorf("restored token = %q", restored.AuthToken())
	}
}

func TestDeviceCodePollingFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "expired token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TokenErrorResponse{Status: 400, Message: "expired_token"})
			},
			wantErr: ErrDeviceCodeExpired,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrAuthProtocol,
		},
		{
			name: "unknown 400 message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(TokenErrorResponse{Status: 400, Message: "invalid_device_code"})
			},
			wantErr: ErrAuthProtocol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			a := NewAuthenticator(filepath.Join(t.TempDir(), "auth.json"), testLogger(t), srv.Client())
			a.tokenURL = srv.URL

			_, err := a.pollForToken(context.Background(), "dc1", 1, 1800)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("pollForToken error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitAdoptsUniqueIDCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "unique_id", Value: "cafebabecafebabecafebabecafebabe"})
	}))
	defer srv.Close()

	a := NewAuthenticator(filepath.Join(t.TempDir(), "auth.json"), testLogger(t), srv.Client())
	a.homeURL = srv.URL

	a.Init(context.Background())
	if a.DeviceID() != "cafebabecafebabecafebabecafebabe" {
		t.Errorf("DeviceID = %q, want cookie value", a.DeviceID())
	}
	if a.ClientSession() != "cafebabecafebabe" {
		t.Errorf("ClientSession = %q, want first 16 chars", a.ClientSession())
	}
}

func TestGetAuthHeaders(t *testing.T) {
	a := NewAuthenticator(filepath.Join(t.TempDir(), "auth.json"), testLogger(t), nil)
	a.authToken = "tok"
	a.deviceID = "0123456789abcdef0123456789abcdef"

	headers := a.GetAuthHeaders()
	if got := headers["Authorization"]; got != "OAuth tok" {
		t.Errorf("Authorization = %q", got)
	}
	if got := headers["Client-Session-Id"]; got != "0123456789abcdef" {
		t.Errorf("Client-Session-Id = %q", got)
	}
	if got := headers["X-Device-Id"]; got != a.deviceID {
		t.Errorf("X-Device-Id = %q", got)
	}
	wantCookie := "unique_id=0123456789abcdef0123456789abcdef; auth-token=tok"
	if got := headers["Cookie"]; got != wantCookie {
		t.Errorf("Cookie = %q, want %q", got, wantCookie)
	}
	if !strings.Contains(headers["Client-Id"], "kd1unb4b3q4t58fwlpcbzcbnm76a8fp") {
		t.Errorf("Client-Id = %q", headers["Client-Id"])
	}
}

func TestGenerateDeviceID(t *testing.T) {
	id := generateDeviceID()
	if len(id) != 32 {
		t.Errorf("len = %d, want 32", len(id))
	}
	if id == generateDeviceID() {
		t.Error("two generated ids are identical")
	}
}
