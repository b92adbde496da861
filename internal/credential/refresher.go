// Package credential keeps a session token fresh for the dispatch path.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sharpline/valuebot/internal/domain"
)

// Authenticator performs the actual login round-trip.
type Authenticator interface {
	Login(ctx context.Context) (domain.Credential, error)
}

// Refresher holds the current credential and renews it on a fixed cadence.
// Readers never block on a renewal in flight; they see the previous token
// until the new one lands.
type Refresher struct {
	auth     Authenticator
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[domain.Credential]

	// refreshMu collapses concurrent ForceRefresh calls into one login.
	refreshMu sync.Mutex
}

// NewRefresher returns a Refresher that renews every interval. It holds no
// credential until the first successful refresh.
func NewRefresher(auth Authenticator, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Refresher{
		auth:     auth,
		interval: interval,
		logger:   logger.With(slog.String("component", "credential")),
	}
}

// Current returns the held credential. It returns domain.ErrStaleCredential
// when none is held or the held one has expired.
func (r *Refresher) Current(now time.Time) (domain.Credential, error) {
	cred := r.current.Load()
	if cred == nil || !cred.Valid(now) {
		return domain.Credential{}, domain.ErrStaleCredential
	}
	return *cred, nil
}

// ForceRefresh logs in immediately and swaps the credential. Concurrent
// callers share one login: whoever arrives while a refresh is in flight
// waits for it and reuses its result.
func (r *Refresher) ForceRefresh(ctx context.Context) (domain.Credential, error) {
	before := r.current.Load()

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// Another caller refreshed while we waited for the lock.
	if cur := r.current.Load(); cur != before && cur != nil {
		return *cur, nil
	}

	cred, err := r.auth.Login(ctx)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("credential: login: %w: %w", domain.ErrCredentialRefresh, err)
	}
	r.current.Store(&cred)
	r.logger.Info("credential refreshed", slog.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

// Run renews the credential on the configured cadence until ctx is done. The
// first renewal happens immediately so dispatch does not start tokenless. A
// failed renewal is logged and retried at the next tick; the previous token
// stays in place until it expires on its own.
func (r *Refresher) Run(ctx context.Context) error {
	if _, err := r.ForceRefresh(ctx); err != nil {
		r.logger.Error("initial login failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ForceRefresh(ctx); err != nil {
				r.logger.Error("scheduled refresh failed", slog.Any("error", err))
			}
		}
	}
}
