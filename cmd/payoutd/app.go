package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/payout-engine/api"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/logs"
	"github.com/warp/payout-engine/payouts"
	"github.com/warp/payout-engine/store/redis"
	"github.com/warp/payout-engine/store/sqlite"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.Store
	cache   payouts.HistoryCache
	service *payouts.Service
	ledger  *payouts.Ledger
	handler *api.Handler
	clock   generic.Clock

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Read(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, nil
}

// newApp wires the store, cache, policy and services from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logs.New(cfg)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}

	open := sqlite.Open
	if cfg.Database.AutoMigrate {
		open = sqlite.New
	}
	store, err := open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	policy, err := factory.NewPolicyFactory().LoadFile(cfg.Rewards.PolicyFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load reward policy: %w", err)
	}
	if cfg.Rewards.Timezone != "" {
		// Validated by config.Read.
		policy.Location, _ = time.LoadLocation(cfg.Rewards.Timezone)
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	a.clock = generic.SystemClock{Location: policy.Location}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.cache = redis.NewHistoryCache(client, cfg.Redis.KeyPrefix)
		logger.Info("history cache: redis", slog.String("addr", cfg.Redis.Addr))
	} else {
		a.cache = payouts.NewMemoryCache(a.clock)
		logger.Info("history cache: in-process")
	}

	a.service = payouts.NewService(payouts.ServiceConfig{
		Lessons:  store,
		Coaches:  store,
		Payouts:  store,
		Policy:   policy,
		Cache:    a.cache,
		CacheTTL: cfg.Redis.TTL(),
		Logger:   logger,
	})
	a.ledger = payouts.NewLedger(store, store, a.clock, logger)
	a.handler = api.NewHandler(api.HandlerConfig{
		Coaches:    store,
		Service:    a.service,
		Ledger:     a.ledger,
		Seeder:     store,
		Cache:      a.cache,
		Clock:      a.clock,
		Logger:     logger,
		MonthsBack: cfg.Rewards.MonthsBack,
	})
	return a, nil
}

// Close releases resources in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
