package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avolkov/careerai-bot/internal/models"
	"github.com/avolkov/careerai-bot/internal/storage"
)

const dayLayout = "2006-01-02"

// Ledger enforces the daily free-request limit. Every read-modify-write
// against a user's counter happens under one mutex so that interleaved
// requests cannot both pass the limit check, and a refund cannot race a
// concurrent consume.
type Ledger struct {
	store  storage.Storage
	limit  int
	logger *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

func NewLedger(store storage.Storage, dailyLimit int, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:  store,
		limit:  dailyLimit,
		logger: logger,
		now:    time.Now,
	}
}

// loadState fetches the user's usage state, creating it on first use
// and applying the lazy UTC day rollover. Callers must hold l.mu.
func (l *Ledger) loadState(ctx context.Context, userID int64) (*models.UsageState, error) {
	state, err := l.store.GetUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage state: %w", err)
	}

	now := l.now().UTC()
	today := now.Format(dayLayout)
	if state == nil {
		state = &models.UsageState{
			UserID:       userID,
			Day:          today,
			RegisteredAt: now,
		}
		if err := l.store.SaveUsage(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to save usage state: %w", err)
		}
		return state, nil
	}

	if state.Day != today {
		state.Day = today
		state.RequestsToday = 0
		if err := l.store.SaveUsage(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to save usage state: %w", err)
		}
	}
	return state, nil
}

// Check reports whether the user may start a billable attempt. It never
// mutates the counter. Unlimited users always pass.
func (l *Ledger) Check(ctx context.Context, userID int64) (bool, error) {
	if l.IsUnlimited(ctx, userID) {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.loadState(ctx, userID)
	if err != nil {
		return false, err
	}
	return state.RequestsToday < l.limit, nil
}

// Consume bills one attempt. Call only after Check returned true, and
// once per attempt.
func (l *Ledger) Consume(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consumeLocked(ctx, userID)
}

// Acquire performs check-then-consume inside a single critical section.
// admitted reports whether the attempt may proceed; billed reports
// whether the free counter was actually consumed. Unlimited users are
// admitted without billing, so a later Refund must be skipped for them.
// This is the entrypoint the analysis path uses; separate Check calls
// are for display only.
func (l *Ledger) Acquire(ctx context.Context, userID int64) (admitted, billed bool, err error) {
	if l.IsUnlimited(ctx, userID) {
		return true, false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.loadState(ctx, userID)
	if err != nil {
		return false, false, err
	}
	if state.RequestsToday >= l.limit {
		return false, false, nil
	}
	if err := l.consumeLocked(ctx, userID); err != nil {
		return false, false, err
	}
	return true, true, nil
}

func (l *Ledger) consumeLocked(ctx context.Context, userID int64) error {
	state, err := l.loadState(ctx, userID)
	if err != nil {
		return err
	}
	now := l.now().UTC()
	state.RequestsToday++
	state.LastRequest = &now
	if err := l.store.SaveUsage(ctx, state); err != nil {
		return fmt.Errorf("failed to save usage state: %w", err)
	}
	return nil
}

// Refund reverses one billed attempt, floored at zero. Called exactly
// when a consumed attempt fails before producing a result.
func (l *Ledger) Refund(ctx context.Context, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.loadState(ctx, userID)
	if err != nil {
		return err
	}
	if state.RequestsToday == 0 {
		return nil
	}
	state.RequestsToday--
	if err := l.store.SaveUsage(ctx, state); err != nil {
		return fmt.Errorf("failed to save usage state: %w", err)
	}
	l.logger.Info("Refunded quota",
		zap.Int64("user_id", userID),
		zap.Int("requests_today", state.RequestsToday))
	return nil
}

// Remaining reports how many free requests the user has left today.
func (l *Ledger) Remaining(ctx context.Context, userID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.loadState(ctx, userID)
	if err != nil {
		return 0, err
	}
	left := l.limit - state.RequestsToday
	if left < 0 {
		left = 0
	}
	return left, nil
}

// IsUnlimited reports whether the user holds an active subscription.
// Expired subscriptions are evicted on check.
func (l *Ledger) IsUnlimited(ctx context.Context, userID int64) bool {
	sub, err := l.store.GetSubscription(ctx, userID)
	if err != nil {
		l.logger.Error("Failed to load subscription",
			zap.Error(err),
			zap.Int64("user_id", userID))
		return false
	}
	if sub == nil {
		return false
	}
	if !sub.ValidUntil.After(l.now()) {
		if err := l.store.DeleteSubscription(ctx, userID); err != nil {
			l.logger.Error("Failed to evict expired subscription",
				zap.Error(err),
				zap.Int64("user_id", userID))
		}
		return false
	}
	return true
}

// Grant gives the user unlimited access for the given duration from now.
func (l *Ledger) Grant(ctx context.Context, userID int64, d time.Duration) error {
	sub := &models.Subscription{
		UserID:     userID,
		ValidUntil: l.now().Add(d),
	}
	if err := l.store.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	l.logger.Info("Granted subscription",
		zap.Int64("user_id", userID),
		zap.Time("valid_until", sub.ValidUntil))
	return nil
}
