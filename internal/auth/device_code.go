package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wrosek/twitch-drops-go/internal/constants"
)

// DeviceCodeResponse represents the response from the device code endpoint.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
}

// TokenResponse represents a successful token response.
type TokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   int      `json:"expires_in"`
	Scope       []string `json:"scope"`
	TokenType   string   `json:"token_type"`
}

// TokenErrorResponse represents an error response from the token endpoint.
type TokenErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// loginWithDeviceCode orchestrates the full device code login flow:
// request a code, hand it to the caller, poll until authorized, validate.
func (a *Authenticator) loginWithDeviceCode(ctx context.Context, onCode OnCodeFunc) error {
	dcResp, err := a.requestDeviceCode(ctx)
	if err != nil {
		return fmt.Errorf("requesting device code: %w", err)
	}

	if onCode != nil {
		onCode(dcResp.UserCode, dcResp.VerificationURI)
	}

	tokenResp, err := a.pollForToken(ctx, dcResp.DeviceCode, dcResp.Interval, dcResp.ExpiresIn)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.authToken = tokenResp.AccessToken
	a.mu.Unlock()

	if err := a.validateToken(ctx); err != nil {
		return fmt.Errorf("%w: token validation after device login failed: %v", ErrAuthProtocol, err)
	}

	a.log.Info("Authenticated via device code flow",
		"login", a.Username(), "user_id", a.UserID())

	return nil
}

func (a *Authenticator) requestDeviceCode(ctx context.Context) (*DeviceCodeResponse, error) {
	form := url.Values{
		"client_id": {constants.ClientIDAndroid},
		"scopes":    {constants.DeviceCodeScopes},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.deviceCodeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating device code request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending device code request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading device code response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: device code request returned HTTP %d: %s",
			ErrAuthProtocol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dcResp DeviceCodeResponse
	if err := json.Unmarshal(body, &dcResp); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}

	if dcResp.DeviceCode == "" || dcResp.UserCode == "" {
		return nil, fmt.Errorf("%w: device code response missing required fields", ErrAuthProtocol)
	}

	return &dcResp, nil
}

// pollForToken polls the token endpoint until the user authorizes the
// device, the code expires, or the context is cancelled.
func (a *Authenticator) pollForToken(ctx context.Context, deviceCode string, interval, expiresIn int) (*TokenResponse, error) {
	if interval <= 0 {
		interval = 5
	}

	pollInterval := time.Duration(interval) * time.Second
	deadline := time.Now().Add(time.Duration(expiresIn) * time.Second)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("device code login cancelled: %w", ctx.Err())
		case t := <-ticker.C:
			if t.After(deadline) {
				return nil, ErrDeviceCodeExpired
			}

			tokenResp, err := a.requestToken(ctx, deviceCode)
			if err != nil {
				return nil, err
			}

			if tokenResp != nil {
				return tokenResp, nil
			}
		}
	}
}

// requestToken makes a single token request. Returns (nil, nil) while
// authorization is still pending.
func (a *Authenticator) requestToken(ctx context.Context, deviceCode string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":   {constants.ClientIDAndroid},
		"device_code": {deviceCode},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		var tokenResp TokenResponse
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return nil, fmt.Errorf("parsing token response: %w", err)
		}
		if tokenResp.AccessToken == "" {
			return nil, fmt.Errorf("%w: token response missing access_token", ErrAuthProtocol)
		}
		return &tokenResp, nil
	}

	if resp.StatusCode == http.StatusBadRequest {
		var errResp TokenErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("parsing token error response: %w", err)
		}

		switch errResp.Message {
		case "authorization_pending":
			return nil, nil
		case "slow_down":
			a.log.Debug("Token endpoint requested slow down")
			return nil, nil
		case "expired_token":
			return nil, ErrDeviceCodeExpired
		default:
			return nil, fmt.Errorf("%w: token request failed: %s (status %d)",
				ErrAuthProtocol, errResp.Message, errResp.Status)
		}
	}

	return nil, fmt.Errorf("%w: token request returned unexpected HTTP %d: %s",
		ErrAuthProtocol, resp.StatusCode, strings.TrimSpace(string(body)))
}
