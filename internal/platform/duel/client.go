// Package duel is the REST client for the soft bookmaker's betting API. It
// implements the credential.Authenticator and dispatch.Placer boundaries.
package duel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sharpline/valuebot/internal/domain"
)

// Account is one bookmaker account, optionally routed through its own proxy.
type Account struct {
	Name     string
	Username string
	Password string
	Proxy    *ProxyConfig
}

// ProxyConfig is an authenticated HTTP proxy endpoint.
type ProxyConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// URL renders the proxy as a http(s) proxy URL.
func (p ProxyConfig) URL() *url.URL {
	u := &url.URL{Scheme: "http", Host: p.Host + ":" + p.Port}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// ClientConfig configures the bookmaker client.
type ClientConfig struct {
	BaseURL string
	Account Account
	// SessionTTL bounds how long a login token is trusted locally. The
	// refresher renews well before this.
	SessionTTL time.Duration
	Timeout    time.Duration
}

// Client talks to the bookmaker API on behalf of one account.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a bookmaker client. When the account carries a proxy,
// every request is routed through it.
func NewClient(cfg ClientConfig) *Client {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 20 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Account.Proxy != nil {
		proxyURL := cfg.Account.Proxy.URL()
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates the account and returns a fresh session credential.
func (c *Client) Login(ctx context.Context) (domain.Credential, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", "", loginRequest{
		Username: c.cfg.Account.Username,
		Password: c.cfg.Account.Password,
	})
	if err != nil {
		return domain.Credential{}, fmt.Errorf("duel: login %s: %w", c.cfg.Account.Name, err)
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Credential{}, fmt.Errorf("duel: decode login: %w", err)
	}
	if resp.Token == "" {
		return domain.Credential{}, fmt.Errorf("duel: login %s: empty token", c.cfg.Account.Name)
	}

	now := time.Now()
	return domain.Credential{
		Token:     resp.Token,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.cfg.SessionTTL),
	}, nil
}

type placeBetRequest struct {
	EventID   string  `json:"event_id"`
	Market    string  `json:"market"`
	Period    string  `json:"period"`
	Team      string  `json:"team,omitempty"`
	Selection string  `json:"selection"`
	Line      float64 `json:"line,omitempty"`
	Price     float64 `json:"price"`
	Stake     float64 `json:"stake"`
	Reference string  `json:"reference"`
}

type placeBetResponse struct {
	Status string `json:"status"` // "accepted" or "rejected"
	BetID  string `json:"bet_id"`
	Reason string `json:"reason"`
}

// PlaceBet submits one bet. A 401 maps to domain.ErrStaleCredential so the
// dispatcher can refresh and retry once; a rejection by the book is returned
// as an outcome, not an error.
func (c *Client) PlaceBet(ctx context.Context, cred domain.Credential, intent domain.BetIntent) (domain.BetOutcome, error) {
	req := placeBetRequest{
		EventID:   intent.Key.EventID,
		Market:    string(intent.Key.Market),
		Period:    string(intent.Key.Period),
		Team:      string(intent.Key.Team),
		Selection: string(intent.Selection),
		Price:     intent.Price,
		Stake:     intent.Stake,
		Reference: intent.ID,
	}
	if intent.Key.HasLine {
		req.Line = intent.Key.Line
	}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/bets", cred.Token, req)
	if err != nil {
		return domain.BetOutcome{}, fmt.Errorf("duel: place bet: %w", err)
	}

	var resp placeBetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.BetOutcome{}, fmt.Errorf("duel: decode bet response: %w", err)
	}

	if resp.Status == "accepted" {
		return domain.BetOutcome{Status: domain.OutcomeConfirmed, BetID: resp.BetID}, nil
	}
	return domain.BetOutcome{Status: domain.OutcomeRejected, Reason: resp.Reason}, nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// Balance reads the account's available balance.
func (c *Client) Balance(ctx context.Context, cred domain.Credential) (float64, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/account/balance", cred.Token, nil)
	if err != nil {
		return 0, fmt.Errorf("duel: balance: %w", err)
	}
	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("duel: decode balance: %w", err)
	}
	return resp.Balance, nil
}

// do performs one request and returns the response body. Non-2xx statuses
// become errors; 401 wraps domain.ErrStaleCredential.
func (c *Client) do(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("status 401: %w", domain.ErrStaleCredential)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
