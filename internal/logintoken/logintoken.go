// Package logintoken implements the QR login flow against the backend.
//
// The flow is two-legged: Create issues a short-lived login token that
// the user scans and approves on an already-authenticated device, then
// Exchange trades the approved login token for an access token. Both
// calls are unauthenticated; vetting happens server-side via the
// approval step.
package logintoken

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/alphahumanxyz/courier/internal/buildinfo"
	"github.com/alphahumanxyz/courier/internal/httpkit"
)

// ErrPending means the login token has not been approved yet; the
// caller should poll Exchange again.
var ErrPending = errors.New("login not yet approved")

// ErrExpired means the login token lapsed before approval; a new one
// must be created.
var ErrExpired = errors.New("login token expired")

// LoginToken is a short-lived credential awaiting approval.
type LoginToken struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"` // deep link the QR encodes
	ExpiresAt time.Time `json:"expiresAt"`
}

// Client talks to the backend's login endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a login client for the given API base URL.
func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http: httpkit.NewClient(
			httpkit.WithTimeout(15*time.Second),
			httpkit.WithUserAgent(buildinfo.UserAgent()),
			httpkit.WithLogger(logger),
		),
		logger: logger,
	}
}

// Create issues a fresh login token.
func (c *Client) Create(ctx context.Context) (*LoginToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/loginToken", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create login token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create login token: HTTP %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 4096))
	}

	var lt LoginToken
	if err := json.NewDecoder(resp.Body).Decode(&lt); err != nil {
		return nil, fmt.Errorf("decode login token: %w", err)
	}
	return &lt, nil
}

// Exchange trades an approved login token for an access token. While
// approval is outstanding it returns ErrPending; after the token
// lapses, ErrExpired.
func (c *Client) Exchange(ctx context.Context, loginToken string) (string, error) {
	body, _ := json.Marshal(map[string]string{"token": loginToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/exchange", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange login token: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		httpkit.DrainAndClose(resp.Body, 4096)
		return "", ErrPending
	case http.StatusGone:
		httpkit.DrainAndClose(resp.Body, 4096)
		return "", ErrExpired
	default:
		return "", fmt.Errorf("exchange login token: HTTP %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 4096))
	}

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode access token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("exchange response missing access token")
	}
	return out.AccessToken, nil
}

// Await polls Exchange until the user approves the login, the token
// expires, or ctx is cancelled.
func (c *Client) Await(ctx context.Context, lt *LoginToken, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		access, err := c.Exchange(ctx, lt.Token)
		switch {
		case err == nil:
			return access, nil
		case errors.Is(err, ErrPending):
			if !lt.ExpiresAt.IsZero() && time.Now().After(lt.ExpiresAt) {
				return "", ErrExpired
			}
		default:
			return "", err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// QRTerminal renders the login deep link as a scannable block-art QR
// for terminal display.
func QRTerminal(lt *LoginToken) (string, error) {
	q, err := qrcode.New(lt.URL, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return q.ToSmallString(false), nil
}
