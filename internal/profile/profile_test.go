package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	profiles map[string]*Profile
	getErr   error
	saves    int
}

func (m *memoryStore) Get(ctx context.Context, userID string) (*Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.profiles[userID], nil
}

func (m *memoryStore) Save(ctx context.Context, p *Profile) error {
	m.saves++
	m.profiles[p.UserID] = p
	return nil
}

func (m *memoryStore) Sessions(ctx context.Context, userID string) (Sessions, error) {
	return nil, nil
}

func (m *memoryStore) IncrementSession(ctx context.Context, userID, day string) (int, error) {
	return 0, nil
}

func TestEnsure_CreatesProfileOnFirstVisit(t *testing.T) {
	store := &memoryStore{profiles: map[string]*Profile{}}

	p, err := Ensure(context.Background(), store, "u1", "cook@example.com")
	require.NoError(t, err)

	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "cook@example.com", p.Email)
	assert.NotNil(t, p.Sessions)
	assert.Empty(t, p.Sessions)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, 1, store.saves)
}

func TestEnsure_KeepsExistingProfile(t *testing.T) {
	existing := &Profile{UserID: "u1", Email: "old@example.com", Sessions: Sessions{"2026-10-17": 2}}
	store := &memoryStore{profiles: map[string]*Profile{"u1": existing}}

	p, err := Ensure(context.Background(), store, "u1", "new@example.com")
	require.NoError(t, err)

	assert.Same(t, existing, p)
	assert.Equal(t, 0, store.saves)
}

func TestEnsure_ReadError(t *testing.T) {
	store := &memoryStore{profiles: map[string]*Profile{}, getErr: errors.New("unavailable")}

	_, err := Ensure(context.Background(), store, "u1", "")
	assert.Error(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestSessionsCount(t *testing.T) {
	s := Sessions{"2026-10-17": 3}

	n, ok := s.Count("2026-10-17")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = s.Count("2026-10-16")
	assert.False(t, ok)
	assert.Equal(t, 0, n)
}
