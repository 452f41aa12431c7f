// Package profile stores per-user profile documents, including the per-day
// inference call counters used by the free tier.
package profile

import (
	"context"
	"fmt"
	"time"
)

// DayLayout is the key format of the Sessions map.
const DayLayout = "2006-01-02"

// Sessions maps a calendar day (DayLayout) to the number of inference calls
// made that day. A day without calls has no key.
type Sessions map[string]int

// Count returns the number of calls recorded for day, and whether the day has an entry.
func (s Sessions) Count(day string) (int, bool) {
	n, ok := s[day]
	return n, ok
}

// Profile is the document kept for every signed-in user.
type Profile struct {
	UserID    string    `json:"userId" db:"user_id" firestore:"-"`
	Email     string    `json:"email" db:"email" firestore:"email"`
	Sessions  Sessions  `json:"sessions" firestore:"sessions"`
	CreatedAt time.Time `json:"createdAt" db:"created_at" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at" firestore:"updatedAt"`
}

// Store persists profiles. Get returns nil, nil when the user has no profile yet.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Sessions(ctx context.Context, userID string) (Sessions, error)
	IncrementSession(ctx context.Context, userID, day string) (int, error)
}

// Ensure returns the user's profile, creating an empty one on first sign-in.
func Ensure(ctx context.Context, store Store, userID, email string) (*Profile, error) {
	p, err := store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p != nil {
		return p, nil
	}

	p = &Profile{
		UserID:    userID,
		Email:     email,
		Sessions:  Sessions{},
		CreatedAt: time.Now(),
	}
	if err := store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}
