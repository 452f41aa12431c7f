package quota

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"pantrychef/internal/profile"
)

// RedisStore keeps each user's counters in a hash keyed by day.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new RedisStore. Keys are prefix + user ID.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "quota:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// Sessions returns every recorded day for the user.
func (s *RedisStore) Sessions(ctx context.Context, userID string) (profile.Sessions, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read quota hash: %w", err)
	}
	return parseSessions(fields)
}

// parseSessions converts a day -> count hash. Any non-integer count is an error.
func parseSessions(fields map[string]string) (profile.Sessions, error) {
	sessions := make(profile.Sessions, len(fields))
	for day, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid quota count %q for %s: %w", raw, day, err)
		}
		sessions[day] = n
	}
	return sessions, nil
}

// IncrementSession atomically increments the counter for day.
func (s *RedisStore) IncrementSession(ctx context.Context, userID, day string) (int, error) {
	n, err := s.client.HIncrBy(ctx, s.key(userID), day, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment quota: %w", err)
	}
	return int(n), nil
}
