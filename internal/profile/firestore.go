package profile

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on users/{uid} documents.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(userID string) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(userID)
}

// Get retrieves a profile by user ID.
func (s *FirestoreStore) Get(ctx context.Context, userID string) (*Profile, error) {
	snap, err := s.doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return decodeSnapshot(snap)
}

// Save merges the profile into the stored document and stamps updatedAt.
func (s *FirestoreStore) Save(ctx context.Context, p *Profile) error {
	sessions := map[string]interface{}{}
	for day, n := range p.Sessions {
		sessions[day] = n
	}

	data := map[string]interface{}{
		"email":     p.Email,
		"sessions":  sessions,
		"updatedAt": firestore.ServerTimestamp,
	}
	if !p.CreatedAt.IsZero() {
		data["createdAt"] = p.CreatedAt
	}

	if _, err := s.doc(p.UserID).Set(ctx, data, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	p.UpdatedAt = time.Now()
	return nil
}

// Sessions returns the per-day call counters of the user.
func (s *FirestoreStore) Sessions(ctx context.Context, userID string) (Sessions, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return Sessions{}, nil
	}
	return p.Sessions, nil
}

// IncrementSession adds one to the counter for day inside a transaction and
// returns the new value.
func (s *FirestoreStore) IncrementSession(ctx context.Context, userID, day string) (int, error) {
	ref := s.doc(userID)
	var count int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		sessions := Sessions{}
		if snap != nil && snap.Exists() {
			p, err := decodeSnapshot(snap)
			if err != nil {
				return err
			}
			sessions = p.Sessions
		}

		current, _ := sessions.Count(day)
		count = current + 1
		return tx.Set(ref, map[string]interface{}{
			"sessions":  map[string]interface{}{day: count},
			"updatedAt": firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment session count: %w", err)
	}
	return count, nil
}

func decodeSnapshot(snap *firestore.DocumentSnapshot) (*Profile, error) {
	var p Profile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", snap.Ref.ID, err)
	}
	p.UserID = snap.Ref.ID
	if p.Sessions == nil {
		p.Sessions = Sessions{}
	}
	return &p, nil
}
