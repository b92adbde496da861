package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sharpline/valuebot/internal/config"
	"github.com/sharpline/valuebot/internal/credential"
	"github.com/sharpline/valuebot/internal/crypto"
	"github.com/sharpline/valuebot/internal/dispatch"
	"github.com/sharpline/valuebot/internal/domain"
	"github.com/sharpline/valuebot/internal/feed"
	"github.com/sharpline/valuebot/internal/filter"
	"github.com/sharpline/valuebot/internal/normalize"
	"github.com/sharpline/valuebot/internal/oddstore"
	"github.com/sharpline/valuebot/internal/platform/duel"
	"github.com/sharpline/valuebot/internal/platform/oddsfeed"
)

// monitorBankroll is the notional balance behind dry-run stake sizing when no
// bookmaker session exists to read a real one from.
const monitorBankroll = 10_000.0

// sessionLockTTL bounds the cross-instance session lock. The lock is not
// renewed, so a session older than this loses exclusivity.
const sessionLockTTL = 24 * time.Hour

// MonitorMode runs the full ingest and matching pipeline with a dry-run
// dispatcher: value bets are found, audited, and announced, but nothing is
// sent to the bookmaker.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	ledger := dispatch.NewLedger(monitorBankroll, a.cfg.Engine.StakePct)
	coord := dispatch.NewCoordinator(
		dispatch.Config{
			PlaceTimeout: a.cfg.Engine.PlaceTimeout.Duration,
			DedupTTL:     a.cfg.Engine.DedupTTL.Duration,
			DryRun:       true,
		},
		ledger, nil, nil,
		deps.DedupStore, deps.AuditStore, deps.IntentStore, deps.Notifier,
		a.logger,
	)

	a.startEngine(ctx, g, deps, coord)

	err := g.Wait()
	coord.Wait()
	return err
}

// BetMode runs the full pipeline against a live bookmaker session: it loads
// the account pool, opens a session on the first account, sizes stakes from
// the real balance, and dispatches eligible value bets.
func (a *App) BetMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting bet mode", slog.Bool("dry_run", a.cfg.Engine.DryRun))

	accounts, err := crypto.LoadAccounts(a.cfg.Bookmaker.AccountsPath, a.cfg.Bookmaker.AccountsPassword)
	if err != nil {
		return fmt.Errorf("bet mode: load accounts: %w", err)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("bet mode: no accounts in %s", a.cfg.Bookmaker.AccountsPath)
	}
	account := accounts[0]

	// One engine instance per account. Two instances sharing a session would
	// double-spend the balance the ledger thinks it owns.
	unlock, err := deps.LockManager.Acquire(ctx, "session:"+account.Name, sessionLockTTL)
	if err != nil {
		return fmt.Errorf("bet mode: session lock %s: %w", account.Name, err)
	}
	defer unlock()

	book := duel.NewClient(duel.ClientConfig{
		BaseURL:    a.cfg.Bookmaker.BaseURL,
		Account:    account,
		SessionTTL: a.cfg.Bookmaker.SessionTTL.Duration,
		Timeout:    a.cfg.Bookmaker.RequestTimeout.Duration,
	})
	refresher := credential.NewRefresher(book, a.cfg.Bookmaker.RefreshInterval.Duration, a.logger)

	// The starting balance anchors stake sizing for the whole session.
	cred, err := book.Login(ctx)
	if err != nil {
		return fmt.Errorf("bet mode: initial login: %w", err)
	}
	balance, err := book.Balance(ctx, cred)
	if err != nil {
		return fmt.Errorf("bet mode: read balance: %w", err)
	}
	a.logger.InfoContext(ctx, "bookmaker session opened",
		slog.String("account", account.Name),
		slog.Float64("balance", balance),
	)

	ledger := dispatch.NewLedger(balance, a.cfg.Engine.StakePct)
	coord := dispatch.NewCoordinator(
		dispatch.Config{
			PlaceTimeout: a.cfg.Engine.PlaceTimeout.Duration,
			DedupTTL:     a.cfg.Engine.DedupTTL.Duration,
			DryRun:       a.cfg.Engine.DryRun,
		},
		ledger, book, refresher,
		deps.DedupStore, deps.AuditStore, deps.IntentStore, deps.Notifier,
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return refresher.Run(ctx)
	})

	a.startEngine(ctx, g, deps, coord)

	err = g.Wait()
	coord.Wait()
	return err
}

// ArchiveMode exports audit rows older than the retention window to blob
// storage and prunes them. It runs once and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: blob storage not wired")
	}

	cutoff := time.Now().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	a.logger.InfoContext(ctx, "archiving audit log",
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
		slog.Time("cutoff", cutoff),
	)

	n, err := deps.Archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete", slog.Int64("rows", n))
	return nil
}

// startEngine builds the odds store, eligibility filter, ingestor, and both
// feed clients, and registers their goroutines on the group.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies, coord *dispatch.Coordinator) {
	store := oddstore.New(oddstore.WithStaleAfter(a.cfg.Engine.StaleAfter.Duration))
	ing := feed.NewIngestor(store, a.buildFilter(), coord,
		deps.QuoteCache, deps.AuditStore,
		a.cfg.Engine.StaleAfter.Duration, a.logger)

	feeds := []struct {
		source domain.Source
		cfg    config.FeedConfig
	}{
		{domain.SourceSharp, a.cfg.Sharp},
		{domain.SourceSoft, a.cfg.Soft},
	}
	for _, f := range feeds {
		client := oddsfeed.NewClient(oddsfeed.ClientConfig{
			URL:    f.cfg.URL,
			APIKey: f.cfg.ApiKey,
			Source: f.source,
			Sports: f.cfg.Sports,
			Bookie: f.cfg.Bookie,
		}, a.logger)
		ing.Bind(client)

		g.Go(func() error {
			if err := client.Connect(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			_ = client.Close()
			return ctx.Err()
		})
	}

	g.Go(func() error {
		return ing.SweepLoop(ctx, a.cfg.Engine.SweepEvery.Duration, a.cfg.Engine.SweepMaxAge.Duration)
	})
}

// buildFilter translates the engine config section into an eligibility filter.
func (a *App) buildFilter() *filter.Engine {
	sports := make(map[domain.Sport]bool, len(a.cfg.Engine.Sports))
	for _, s := range a.cfg.Engine.Sports {
		sports[normalize.ParseSport(s)] = true
	}
	markets := make(map[domain.MarketType]bool, len(a.cfg.Engine.Markets))
	for _, m := range a.cfg.Engine.Markets {
		markets[domain.MarketType(strings.ToLower(strings.TrimSpace(m)))] = true
	}

	return filter.New(filter.Config{
		Sports:           sports,
		Markets:          markets,
		MinValuePct:      decimal.NewFromFloat(a.cfg.Engine.MinValuePct),
		MaxValuePct:      decimal.NewFromFloat(a.cfg.Engine.MaxValuePct),
		MinOdds:          a.cfg.Engine.MinOdds,
		MaxOdds:          a.cfg.Engine.MaxOdds,
		MinToStart:       a.cfg.Engine.MinToStart.Duration,
		MinToStartTennis: a.cfg.Engine.MinToStartTennis.Duration,
		MaxToStart:       a.cfg.Engine.MaxToStart.Duration,
	})
}
