/*
Package payouts is the service layer around the reward engine.

PURPOSE:
  The rewards package is pure; this package feeds it. It fetches lessons,
  coach metadata and payouts from the stores in parallel, hands an
  immutable snapshot to the engine, memoizes histories, and assembles the
  consumer views: the coach history, the payout dashboard and the
  settlement slip. It also owns the payout ledger workflow (ledger.go).

CONCURRENCY:
  Fetches for one request run concurrently through errgroup; the first
  error cancels the rest. Computation happens after every fetch completes,
  on data nobody else can mutate.

LOOKBACK:
  A history of N months needs lessons from N + RankWindowMonths months
  before the reference month, so the oldest month is classified from a
  full trailing window.

SEE ALSO:
  - rewards/: the engine
  - cache.go: HistoryCache
  - dashboard.go, slip.go: consumer views
*/
package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/rewards"
	"golang.org/x/sync/errgroup"
)

// DefaultMonthsBack is the history length shown when none is requested.
const DefaultMonthsBack = 12

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Lessons generic.LessonSource
	Coaches generic.CoachSource
	Payouts generic.PayoutReader
	Policy  rewards.Policy

	// Cache is optional.
	Cache    HistoryCache
	CacheTTL time.Duration

	Logger *slog.Logger
}

// Service computes coach histories, dashboards and slips.
type Service struct {
	lessons  generic.LessonSource
	coaches  generic.CoachSource
	payouts  generic.PayoutReader
	calc     rewards.Calculator
	cache    HistoryCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	// Months are bucketed in one location for fetch windows, cache keys and
	// the engine alike. Unset means UTC, never the reference date's zone.
	policy := cfg.Policy
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Service{
		lessons:  cfg.Lessons,
		coaches:  cfg.Coaches,
		payouts:  cfg.Payouts,
		calc:     rewards.NewCalculator(policy),
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   logger.With("component", "payout_service"),
	}
}

// Policy returns the reward policy in use.
func (s *Service) Policy() rewards.Policy {
	return s.calc.Policy
}

// Location is the location months are bucketed in.
func (s *Service) Location() *time.Location {
	return s.calc.Policy.Location
}

// ParseMonth parses a month key in the service's location.
func (s *Service) ParseMonth(month generic.MonthKey) (time.Time, error) {
	return generic.ParseMonthKey(string(month), s.Location())
}

// =============================================================================
// SNAPSHOT - Parallel read of everything one coach needs
// =============================================================================

// Snapshot is a consistent read of one coach's inputs.
type Snapshot struct {
	Coach   generic.Coach
	Lessons []generic.Lesson
	Payouts []generic.PayoutTransaction
}

// lessonWindow returns the lesson query bounds for monthsBack months ending
// at ref's month.
func (s *Service) lessonWindow(ref time.Time, monthsBack int) (time.Time, time.Time) {
	ref = ref.In(s.Location())
	window := s.calc.Policy.RankWindowMonths
	if window <= 0 {
		window = rewards.RankWindowMonths
	}
	return generic.LookbackStart(ref, monthsBack+window), generic.EndOfMonth(ref)
}

// Snapshot fetches the coach, lessons and payouts concurrently.
func (s *Service) Snapshot(ctx context.Context, coachID generic.CoachID, ref time.Time, monthsBack int) (Snapshot, error) {
	from, to := s.lessonWindow(ref, monthsBack)

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.coaches.Coach(gctx, coachID)
		if err != nil {
			return err
		}
		snap.Coach = c
		return nil
	})
	g.Go(func() error {
		lessons, err := s.lessons.Lessons(gctx, generic.LessonQuery{CoachID: coachID, From: from, To: to})
		if err != nil {
			return fmt.Errorf("fetch lessons: %w", err)
		}
		snap.Lessons = lessons
		return nil
	})
	g.Go(func() error {
		payouts, err := s.payouts.Payouts(gctx, generic.PayoutQuery{CoachID: coachID})
		if err != nil {
			return fmt.Errorf("fetch payouts: %w", err)
		}
		snap.Payouts = payouts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	s.logMalformed(ctx, coachID, snap.Lessons)
	return snap, nil
}

// logMalformed reports lessons whose master is missing. They earn nothing.
func (s *Service) logMalformed(ctx context.Context, coachID generic.CoachID, lessons []generic.Lesson) {
	n := 0
	for _, l := range lessons {
		if l.Master == nil {
			n++
		}
	}
	if n > 0 {
		s.logger.WarnContext(ctx, "lessons without master", "coach_id", coachID, "lessons_without_master", n)
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func (s *Service) historyInput(c generic.Coach, lessons []generic.Lesson, monthsBack int, ref time.Time) rewards.HistoryInput {
	in := rewards.HistoryInput{
		CoachID:      c.ID,
		Lessons:      lessons,
		MonthsBack:   monthsBack,
		Reference:    ref.In(s.Location()),
		OverrideRate: s.overrideRate(c),
	}
	if !c.CreatedAt.IsZero() {
		created := c.CreatedAt
		in.CreatedAt = &created
	}
	return in
}

func (s *Service) overrideRate(c generic.Coach) decimal.NullDecimal {
	if c.OverrideRate == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(c.OverrideRate)
	if err != nil {
		s.logger.Warn("ignoring malformed override rate", "coach_id", c.ID, "override_rate", c.OverrideRate)
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func (s *Service) historyKey(c generic.Coach, monthsBack int, ref time.Time) HistoryKey {
	k := HistoryKey{
		CoachID:        c.ID,
		ReferenceMonth: generic.MonthKeyOf(ref.In(s.Location())),
		MonthsBack:     monthsBack,
		PolicyVersion:  s.calc.Policy.Version,
		OverrideRate:   c.OverrideRate,
	}
	if !c.CreatedAt.IsZero() {
		k.CreatedMonth = generic.MonthKeyOf(c.CreatedAt.In(s.Location()))
	}
	return k
}

// History returns the coach's monthly stats, most recent first, served from
// the cache when possible.
func (s *Service) History(ctx context.Context, coachID generic.CoachID, monthsBack int, ref time.Time) ([]rewards.MonthlyStats, error) {
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}

	c, err := s.coaches.Coach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return s.history(ctx, c, monthsBack, ref)
}

func (s *Service) history(ctx context.Context, c generic.Coach, monthsBack int, ref time.Time) ([]rewards.MonthlyStats, error) {
	key := s.historyKey(c, monthsBack, ref)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, generic.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "history cache read failed", "key", key.String(), "error", err)
		}
	}

	from, to := s.lessonWindow(ref, monthsBack)
	lessons, err := s.lessons.Lessons(ctx, generic.LessonQuery{CoachID: c.ID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("fetch lessons: %w", err)
	}
	s.logMalformed(ctx, c.ID, lessons)

	history := s.calc.History(s.historyInput(c, lessons, monthsBack, ref))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, history, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "history cache write failed", "key", key.String(), "error", err)
		}
	}
	return history, nil
}

// =============================================================================
// COACH STATEMENT - Settled and reconciled history of one coach
// =============================================================================

// MonthStatement is one month of a coach's statement.
type MonthStatement struct {
	Settlement rewards.SettlementRecord
	Reconciled rewards.ReconciledStatus
	Payouts    []generic.PayoutTransaction
}

// CoachStatement is a coach's settled history with payout status per month.
type CoachStatement struct {
	Coach  generic.Coach
	AsOf   time.Time
	Months []MonthStatement
}

// StatementOptions tunes Statement.
type StatementOptions struct {
	MonthsBack          int
	SkipEmptyPastMonths bool
}

// Statement settles the coach's history and reconciles every month against
// the payouts recorded for it. Each month is reconciled on its FinalAmount,
// the amount actually transferred.
func (s *Service) Statement(ctx context.Context, coachID generic.CoachID, ref time.Time, opts StatementOptions) (CoachStatement, error) {
	if opts.MonthsBack <= 0 {
		opts.MonthsBack = DefaultMonthsBack
	}

	c, err := s.coaches.Coach(ctx, coachID)
	if err != nil {
		return CoachStatement{}, err
	}

	var (
		history []rewards.MonthlyStats
		payouts []generic.PayoutTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = s.history(gctx, c, opts.MonthsBack, ref)
		return err
	})
	g.Go(func() error {
		var err error
		payouts, err = s.payouts.Payouts(gctx, generic.PayoutQuery{CoachID: coachID})
		if err != nil {
			return fmt.Errorf("fetch payouts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return CoachStatement{}, err
	}

	byMonth := groupByMonth(payouts)
	records := rewards.SettleHistory(history, rewards.TaxProfileOf(c), s.calc.Policy, ref.In(s.Location()), opts.SkipEmptyPastMonths)

	stmt := CoachStatement{Coach: c, AsOf: ref, Months: make([]MonthStatement, 0, len(records))}
	for _, rec := range records {
		monthPayouts := byMonth[rec.MonthKey]
		stmt.Months = append(stmt.Months, MonthStatement{
			Settlement: rec,
			Reconciled: rewards.Reconcile(rec.FinalAmount, monthPayouts),
			Payouts:    monthPayouts,
		})
	}
	return stmt, nil
}

func groupByMonth(payouts []generic.PayoutTransaction) map[generic.MonthKey][]generic.PayoutTransaction {
	result := make(map[generic.MonthKey][]generic.PayoutTransaction)
	for _, p := range payouts {
		result[p.TargetMonth] = append(result[p.TargetMonth], p)
	}
	return result
}

// =============================================================================
// CACHE WARM-UP
// =============================================================================

// WarmHistories computes and caches every coach's history for ref. It
// returns the number of coaches warmed. Without a cache it does nothing.
func (s *Service) WarmHistories(ctx context.Context, ref time.Time, monthsBack int) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	if monthsBack <= 0 {
		monthsBack = DefaultMonthsBack
	}

	coaches, err := s.coaches.Coaches(ctx)
	if err != nil {
		return 0, fmt.Errorf("list coaches: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range coaches {
		g.Go(func() error {
			_, err := s.history(gctx, c, monthsBack, ref)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(coaches), nil
}

// PurgeCache drops expired history entries from caches that keep them
// in process. Shared caches expire on their own; it returns 0 for those.
func (s *Service) PurgeCache() int {
	p, ok := s.cache.(interface{ Purge() int })
	if !ok {
		return 0
	}
	return p.Purge()
}
