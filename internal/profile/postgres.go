package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore implements Store for PostgreSQL. Sessions are kept in a JSONB column.
type PostgresStore struct {
	db *sqlx.DB
}

type profileRow struct {
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Sessions  []byte    `db:"sessions"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPostgresStore creates a new PostgresStore and makes sure its table exists.
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		sessions JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create user_profiles table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Get retrieves a profile by user ID.
func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row,
		"SELECT user_id, email, sessions, created_at, updated_at FROM user_profiles WHERE user_id = $1", userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	p := &Profile{
		UserID:    row.UserID,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := json.Unmarshal(row.Sessions, &p.Sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	if p.Sessions == nil {
		p.Sessions = Sessions{}
	}
	return p, nil
}

// Save upserts the profile. Session counters are merged into the stored ones.
func (s *PostgresStore) Save(ctx context.Context, p *Profile) error {
	sessions := p.Sessions
	if sessions == nil {
		sessions = Sessions{}
	}
	sessionsJSON, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err = s.db.GetContext(ctx, &p.UpdatedAt,
		`INSERT INTO user_profiles (user_id, email, sessions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			sessions = user_profiles.sessions || EXCLUDED.sessions,
			updated_at = now()
		RETURNING updated_at`,
		p.UserID,
		p.Email,
		sessionsJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Sessions returns the per-day call counters of the user. A user without a
// profile has no counters.
func (s *PostgresStore) Sessions(ctx context.Context, userID string) (Sessions, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return Sessions{}, nil
	}
	return p.Sessions, nil
}

// IncrementSession atomically adds one to the counter for day and returns the new value.
func (s *PostgresStore) IncrementSession(ctx context.Context, userID, day string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`INSERT INTO user_profiles (user_id, sessions, updated_at)
		VALUES ($1, jsonb_build_object($2::text, 1), now())
		ON CONFLICT (user_id) DO UPDATE SET
			sessions = jsonb_set(
				user_profiles.sessions,
				ARRAY[$2::text],
				to_jsonb(COALESCE((user_profiles.sessions ->> $2::text)::int, 0) + 1)
			),
			updated_at = now()
		RETURNING (sessions ->> $2::text)::int`,
		userID,
		day,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment session count: %w", err)
	}
	return count, nil
}
