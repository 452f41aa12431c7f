// Package quota enforces the free tier: a per-user cap on inference calls per
// calendar day.
//
// Allow and Record are separate round trips to the backing store. Two requests
// from the same user can both pass Allow before either is recorded, so a user
// may exceed the cap by the number of requests they have in flight at once.
// Increments themselves are atomic in every Store, so no call is lost.
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pantrychef/internal/profile"
)

// Store persists per-day call counters for users.
type Store interface {
	Sessions(ctx context.Context, userID string) (profile.Sessions, error)
	IncrementSession(ctx context.Context, userID, day string) (int, error)
}

// Usage is a snapshot of a user's consumption for today.
type Usage struct {
	Day   string `json:"day"`
	Used  int    `json:"used"`
	Limit int    `json:"limit"`
}

// Tracker checks and records inference calls against a daily maximum.
type Tracker struct {
	store    Store
	maxCalls int
	now      func() time.Time
	logger   *zap.Logger
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides the clock used to pick today's key.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker. maxCalls of zero lets only the first call of
// each day through.
func NewTracker(store Store, maxCalls int, logger *zap.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		store:    store,
		maxCalls: maxCalls,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) today() string {
	return t.now().Format(profile.DayLayout)
}

// Allow reports whether the user may issue another inference request today.
// The first call of the day is always allowed. A read failure denies.
func (t *Tracker) Allow(ctx context.Context, userID string) bool {
	day := t.today()
	sessions, err := t.store.Sessions(ctx, userID)
	if err != nil {
		t.logger.Error("failed to read quota, denying request",
			zap.String("user_id", userID),
			zap.String("day", day),
			zap.Error(err),
		)
		return false
	}

	used, ok := sessions.Count(day)
	if !ok {
		return true
	}
	if used >= t.maxCalls {
		t.logger.Info("daily quota exhausted",
			zap.String("user_id", userID),
			zap.Int("used", used),
			zap.Int("limit", t.maxCalls),
		)
		return false
	}
	return true
}

// Record adds one call to today's counter. It reports whether the write succeeded.
func (t *Tracker) Record(ctx context.Context, userID string) bool {
	day := t.today()
	count, err := t.store.IncrementSession(ctx, userID, day)
	if err != nil {
		t.logger.Error("failed to record quota usage",
			zap.String("user_id", userID),
			zap.String("day", day),
			zap.Error(err),
		)
		return false
	}
	t.logger.Debug("quota usage recorded",
		zap.String("user_id", userID),
		zap.String("day", day),
		zap.Int("count", count),
	)
	return true
}

// Usage returns today's call count for the user.
func (t *Tracker) Usage(ctx context.Context, userID string) (Usage, error) {
	day := t.today()
	sessions, err := t.store.Sessions(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	used, _ := sessions.Count(day)
	return Usage{Day: day, Used: used, Limit: t.maxCalls}, nil
}
