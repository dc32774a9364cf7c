package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/wrosek/twitch-drops-go/internal/constants"
	"github.com/wrosek/twitch-drops-go/internal/logger"
)

// ErrAuthProtocol marks a non-recoverable deviation from the OAuth device
// flow: a non-standard token endpoint error or an unexpected status.
var ErrAuthProtocol = errors.New("auth protocol error")

// ErrDeviceCodeExpired is returned when the user never authorized the
// device code within its lifetime.
var ErrDeviceCodeExpired = errors.New("device code expired")

// Authenticator holds the authenticated session and produces the header
// set every Twitch API request carries. It is safe for concurrent use.
type Authenticator struct {
	mu sync.RWMutex

	login     string
	authToken string
	userID    string
	deviceID  string

	sessionPath string

	log        *logger.Logger
	httpClient *http.Client

	// endpoint overrides for tests
	deviceCodeURL string
	tokenURL      string
	validateURL   string
	homeURL       string
}

// NewAuthenticator creates an Authenticator persisting its session to
// sessionPath. A nil httpClient falls back to a default with the standard
// timeout; callers pass a proxy-aware client when a proxy is configured.
func NewAuthenticator(sessionPath string, log *logger.Logger, httpClient *http.Client) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &Authenticator{
		sessionPath:   sessionPath,
		deviceID:      generateDeviceID(),
		log:           log,
		httpClient:    httpClient,
		deviceCodeURL: constants.DeviceCodeURL,
		tokenURL:      constants.TokenURL,
		validateURL:   constants.ValidateURL,
		homeURL:       constants.TwitchURL,
	}
}

// Init fetches the platform home page and adopts the first-party unique_id
// cookie as the device id when present. Idempotent; a failure keeps the
// generated id.
func (a *Authenticator) Init(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.homeURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.log.Debug("Home page fetch failed, keeping generated device id", "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	for _, c := range resp.Cookies() {
		if c.Name == "unique_id" && c.Value != "" {
			a.mu.Lock()
			a.deviceID = c.Value
			a.mu.Unlock()
			a.log.Debug("Adopted unique_id cookie as device id")
			return
		}
	}
}

// OnCodeFunc receives the user code and verification URI once the device
// flow starts, so the caller can present them.
type OnCodeFunc func(userCode, verificationURI string)

// Login restores a persisted session when its token still validates,
// otherwise runs the device code flow and persists the result.
func (a *Authenticator) Login(ctx context.Context, onCode OnCodeFunc) error {
	if session, err := LoadSession(a.sessionPath); err == nil && session.Valid() {
		a.mu.Lock()
		a.authToken = session.AccessToken
		a.login = session.Login
		a.userID = strconv.Itoa(session.UserID)
		if session.DeviceID != "" {
			a.deviceID = session.DeviceID
		}
		a.mu.Unlock()

		if err := a.validateToken(ctx); err == nil {
			a.log.Info("Restored session", "login", a.Username(), "user_id", a.UserID())
			return nil
		}
		a.log.Warn("Persisted session is no longer valid, starting device code login")
	}

	if err := a.loginWithDeviceCode(ctx, onCode); err != nil {
		return err
	}

	if err := a.saveSession(); err != nil {
		a.log.Warn("Failed to save session", "error", err)
	}
	return nil
}

// validateToken resolves the login name and numeric user id for the
// current token via the OAuth2 validate endpoint.
func (a *Authenticator) validateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.validateURL, nil)
	if err != nil {
		return fmt.Errorf("create validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+a.AuthToken())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("validate token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token validation failed with status %d", resp.StatusCode)
	}

	var result struct {
		Login  string `json:"login"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode validate response: %w", err)
	}

	a.mu.Lock()
	a.login = result.Login
	a.userID = result.UserID
	a.mu.Unlock()
	return nil
}

func (a *Authenticator) saveSession() error {
	a.mu.RLock()
	session := Session{
		AccessToken: a.authToken,
		DeviceID:    a.deviceID,
		Login:       a.login,
	}
	session.UserID, _ = strconv.Atoi(a.userID)
	a.mu.RUnlock()
	return session.Save(a.sessionPath)
}

// AuthToken returns the current OAuth token.
func (a *Authenticator) AuthToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authToken
}

// UserID returns the authenticated user's numeric id as a string.
func (a *Authenticator) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// DeviceID returns the device id sent as X-Device-Id.
func (a *Authenticator) DeviceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.deviceID
}

// ClientSession returns the session id derived from the device id.
func (a *Authenticator) ClientSession() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.deviceID) >= 16 {
		return a.deviceID[:16]
	}
	return a.deviceID
}

// Username returns the login name of the authenticated user.
func (a *Authenticator) Username() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.login
}

// GetAuthHeaders returns the headers required on every GQL request.
func (a *Authenticator) GetAuthHeaders() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	clientSession := a.deviceID
	if len(clientSession) >= 16 {
		clientSession = clientSession[:16]
	}

	return map[string]string{
		"Authorization":     "OAuth " + a.authToken,
		"Client-Id":         constants.ClientIDAndroid,
		"Client-Session-Id": clientSession,
		"X-Device-Id":       a.deviceID,
		"User-Agent":        constants.DefaultUserAgent,
		"Origin":            constants.TwitchURL,
		"Referer":           constants.TwitchURL + "/",
		"Cookie":            fmt.Sprintf("unique_id=%s; auth-token=%s", a.deviceID, a.authToken),
	}
}

// generateDeviceID creates a random 32-character alphanumeric device id,
// used until the home page yields a first-party unique_id cookie.
func generateDeviceID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		for i := range randomBytes {
			randomBytes[i] = charset[i%len(charset)]
		}
		return string(randomBytes)
	}
	for i := range randomBytes {
		randomBytes[i] = charset[int(randomBytes[i])%len(charset)]
	}
	return string(randomBytes)
}

// GenerateHex creates a random hex string of the given byte length.
func GenerateHex(numBytes int) string {
	randomBytes := make([]byte, numBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return strings.Repeat("0", numBytes*2)
	}
	return fmt.Sprintf("%x", randomBytes)
}
