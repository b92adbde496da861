package duel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

func testIntent() domain.BetIntent {
	return domain.BetIntent{
		ID: "intent-1",
		Key: domain.MarketKey{
			Sport: domain.SportFootball, EventID: "ev1", Market: domain.MarketTotal,
			Period: domain.PeriodFullTime, Selection: domain.SelectionOver, Line: 2.5, HasLine: true,
		},
		Selection: domain.SelectionOver,
		Stake:     15.00,
		Price:     2.20,
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "user1", req.Username)
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-abc"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		Account:    Account{Name: "acct", Username: "user1", Password: "pw"},
		SessionTTL: 20 * time.Minute,
	})

	cred, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", cred.Token)
	assert.True(t, cred.Valid(time.Now()))
	assert.False(t, cred.Valid(time.Now().Add(time.Hour)))
}

func TestPlaceBetAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/bets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req placeBetRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "total", req.Market)
		assert.Equal(t, 2.5, req.Line)
		assert.Equal(t, 15.00, req.Stake)
		json.NewEncoder(w).Encode(placeBetResponse{Status: "accepted", BetID: "b-9"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	out, err := c.PlaceBet(context.Background(), domain.Credential{Token: "tok"}, testIntent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConfirmed, out.Status)
	assert.Equal(t, "b-9", out.BetID)
}

func TestPlaceBetRejectedIsOutcomeNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(placeBetResponse{Status: "rejected", Reason: "odds_changed"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	out, err := c.PlaceBet(context.Background(), domain.Credential{Token: "tok"}, testIntent())
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, out.Status)
	assert.Equal(t, "odds_changed", out.Reason)
}

func TestPlaceBetUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.PlaceBet(context.Background(), domain.Credential{Token: "old"}, testIntent())
	assert.ErrorIs(t, err, domain.ErrStaleCredential)
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/account/balance", r.URL.Path)
		json.NewEncoder(w).Encode(balanceResponse{Balance: 1234.56})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	b, err := c.Balance(context.Background(), domain.Credential{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, 1234.56, b)
}

func TestProxyURL(t *testing.T) {
	p := ProxyConfig{Host: "10.0.0.1", Port: "8080", Username: "pu", Password: "pp"}
	assert.Equal(t, "http://pu:pp@10.0.0.1:8080", p.URL().String())
}
