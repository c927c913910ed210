// Package embedding holds the provider-agnostic embedding decorators: token
// budgets and instrumentation around whichever provider is configured.
package embedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/courseadvisor/internal/domain"
)

// BudgetAction defines behavior when token budget is exceeded.
type BudgetAction string

const (
	// BudgetActionWarn logs a warning but allows the request.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails the request with ErrEmbeddingQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore persists counters across restarts. IncrBy must be additive.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Limits caps token consumption per calendar period. Zero means unlimited.
type Limits struct {
	Daily   int64
	Monthly int64
}

// BudgetUsage is a point-in-time view of a tracker, used by the usage report.
type BudgetUsage struct {
	Provider     string
	DailyUsed    int64
	DailyLimit   int64
	MonthlyUsed  int64
	MonthlyLimit int64
}

// BudgetTracker counts tokens in memory and writes increments behind to an
// optional store. Check never leaves the process.
type BudgetTracker struct {
	provider string
	limits   Limits
	action   BudgetAction
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	daily    int64
	monthly  int64
	dayStart time.Time
	monStart time.Time
	store    BudgetStore
}

// NewBudgetTracker creates a tracker for one provider.
func NewBudgetTracker(provider string, limits Limits, action BudgetAction, logger *zap.Logger) *BudgetTracker {
	b := &BudgetTracker{
		provider: provider,
		limits:   limits,
		action:   action,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	b.dayStart, b.monStart = periodStarts(b.now())
	return b
}

// WithStore attaches a persistence store and seeds counters from it.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	if v, err := store.Get(ctx, b.key("daily", now)); err != nil {
		b.logger.Warn("Failed to load daily budget from store", zap.Error(err))
	} else {
		b.daily = v
	}
	if v, err := store.Get(ctx, b.key("monthly", now)); err != nil {
		b.logger.Warn("Failed to load monthly budget from store", zap.Error(err))
	} else {
		b.monthly = v
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily),
		zap.Int64("monthly_used", b.monthly),
	)
	return b
}

func (b *BudgetTracker) key(period string, t time.Time) string {
	layout := "2006-01-02"
	if period == "monthly" {
		layout = "2006-01"
	}
	return fmt.Sprintf("%sbudget:%s:%s:%s", domain.KeyPrefix, b.provider, period, t.Format(layout))
}

// Check reports whether another provider call is allowed.
func (b *BudgetTracker) Check(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()

	over := (b.limits.Daily > 0 && b.daily >= b.limits.Daily) ||
		(b.limits.Monthly > 0 && b.monthly >= b.limits.Monthly)
	if !over {
		return nil
	}
	if b.action == BudgetActionReject {
		return domain.ErrEmbeddingQuotaExceeded
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily),
		zap.Int64("daily_limit", b.limits.Daily),
		zap.Int64("monthly_used", b.monthly),
		zap.Int64("monthly_limit", b.limits.Monthly),
	)
	return nil
}

// Record adds consumed tokens and persists the increment if a store is attached.
func (b *BudgetTracker) Record(tokens int64) {
	b.mu.Lock()
	b.rollover()
	b.daily += tokens
	b.monthly += tokens
	store := b.store
	now := b.now()
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request so a cancelled request still persists its spend.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, key := range []string{b.key("daily", now), b.key("monthly", now)} {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget", zap.String("key", key), zap.Error(err))
		}
	}
}

// RemainingDaily returns tokens left today, -1 when unlimited.
func (b *BudgetTracker) RemainingDaily() int64 {
	u := b.Usage()
	return remaining(u.DailyLimit, u.DailyUsed)
}

// RemainingMonthly returns tokens left this month, -1 when unlimited.
func (b *BudgetTracker) RemainingMonthly() int64 {
	u := b.Usage()
	return remaining(u.MonthlyLimit, u.MonthlyUsed)
}

// Usage returns the current counters and limits.
func (b *BudgetTracker) Usage() BudgetUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollover()
	return BudgetUsage{
		Provider:     b.provider,
		DailyUsed:    b.daily,
		DailyLimit:   b.limits.Daily,
		MonthlyUsed:  b.monthly,
		MonthlyLimit: b.limits.Monthly,
	}
}

func remaining(limit, used int64) int64 {
	if limit == 0 {
		return -1
	}
	return max(limit-used, 0)
}

// rollover zeroes counters whose period has ended. Caller holds mu.
func (b *BudgetTracker) rollover() {
	day, mon := periodStarts(b.now())
	if day.After(b.dayStart) {
		b.daily = 0
		b.dayStart = day
	}
	if mon.After(b.monStart) {
		b.monthly = 0
		b.monStart = mon
	}
}

func periodStarts(t time.Time) (day, month time.Time) {
	day = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	month = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, month
}
