/*
scheduler.go - Periodic history cache warmer

PURPOSE:
  Periodically precomputes every coach's monthly history so the dashboard
  and statements are served from cache.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on start
  - Each run drops expired in-process entries, then rebuilds histories
    as of the clock's current time
  - Errors are logged; the next tick retries

CONFIGURATION:
  - Interval: How often to warm (default: 10 minutes)
  - MonthsBack: History length to precompute
  - Enabled: Whether the warmer is active

USAGE:
  warmer := NewCacheWarmer(service, clock, logger)
  warmer.Start()
  // ... later
  warmer.Stop()

SEE ALSO:
  - handlers.go: WarmCache endpoint (manual run)
  - payouts/service.go: WarmHistories
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/payouts"
)

// CacheWarmer periodically warms the history cache.
type CacheWarmer struct {
	Service    *payouts.Service
	Clock      generic.Clock
	Logger     *slog.Logger
	Interval   time.Duration
	MonthsBack int
	Enabled    bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewCacheWarmer creates a warmer with default settings.
func NewCacheWarmer(service *payouts.Service, clock generic.Clock, logger *slog.Logger) *CacheWarmer {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheWarmer{
		Service:    service,
		Clock:      clock,
		Logger:     logger.With("component", "cache_warmer"),
		Interval:   10 * time.Minute,
		MonthsBack: payouts.DefaultMonthsBack,
		Enabled:    true,
	}
}

// Start begins the warmer.
func (cw *CacheWarmer) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.Enabled {
		cw.Logger.Info("disabled, not starting")
		return
	}
	if cw.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cw.cancel = cancel
	cw.stop = make(chan struct{})
	cw.ticker = time.NewTicker(cw.Interval)
	cw.wg.Add(1)

	go cw.run(ctx)

	cw.Logger.Info("started", slog.Duration("interval", cw.Interval), slog.Int("months_back", cw.MonthsBack))
}

// Stop stops the warmer and waits for an in-flight run.
func (cw *CacheWarmer) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.ticker == nil {
		return
	}
	cw.ticker.Stop()
	cw.cancel()
	close(cw.stop)
	cw.wg.Wait()
	cw.ticker = nil
	cw.Logger.Info("stopped")
}

func (cw *CacheWarmer) run(ctx context.Context) {
	defer cw.wg.Done()

	// Run immediately on start
	cw.warm(ctx)

	for {
		select {
		case <-cw.ticker.C:
			cw.warm(ctx)
		case <-cw.stop:
			return
		}
	}
}

func (cw *CacheWarmer) warm(ctx context.Context) {
	if _, err := cw.RunNow(ctx); err != nil && ctx.Err() == nil {
		cw.Logger.Error("warm-up failed", slog.Any("error", err))
	}
}

// RunNow warms the cache once and returns the number of coaches processed.
func (cw *CacheWarmer) RunNow(ctx context.Context) (int, error) {
	started := time.Now()
	purged := cw.Service.PurgeCache()
	n, err := cw.Service.WarmHistories(ctx, cw.Clock.Now(), cw.MonthsBack)
	if err != nil {
		return n, err
	}

	cw.lastMu.Lock()
	cw.lastRun = started
	cw.lastMu.Unlock()

	cw.Logger.Debug("warm-up completed", slog.Int("coaches", n), slog.Int("purged", purged), slog.Duration("took", time.Since(started)))
	return n, nil
}

// LastRun returns when the last successful run started.
func (cw *CacheWarmer) LastRun() time.Time {
	cw.lastMu.Lock()
	defer cw.lastMu.Unlock()
	return cw.lastRun
}
