package recipe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on top of users/{uid}/bookmarks collections.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// bookmarkDoc is a stored bookmark. Documents written before createdAt was
// recorded decode with a zero time and list last.
type bookmarkDoc struct {
	Recipe
	CreatedAt time.Time `firestore:"createdAt"`
}

func (s *FirestoreStore) bookmarks(userID string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(userID).Collection("bookmarks")
}

// SaveBookmark stores a copy of the recipe for the user and assigns its ID.
func (s *FirestoreStore) SaveBookmark(ctx context.Context, userID string, recipe *Recipe) error {
	id := uuid.NewString()
	doc := bookmarkDoc{Recipe: *recipe, CreatedAt: time.Now().UTC()}
	doc.ensureSlices()
	if _, err := s.bookmarks(userID).Doc(id).Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	recipe.ID = id
	return nil
}

// ListBookmarks returns every bookmark of the user, newest first.
func (s *FirestoreStore) ListBookmarks(ctx context.Context, userID string) ([]*Recipe, error) {
	var docs []bookmarkDoc
	iter := s.bookmarks(userID).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list bookmarks: %w", err)
		}

		var d bookmarkDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode bookmark %s: %w", doc.Ref.ID, err)
		}
		d.ID = doc.Ref.ID
		d.ensureSlices()
		docs = append(docs, d)
	}
	return newestFirst(docs), nil
}

func newestFirst(docs []bookmarkDoc) []*Recipe {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	recipes := make([]*Recipe, 0, len(docs))
	for i := range docs {
		recipes = append(recipes, &docs[i].Recipe)
	}
	return recipes
}

// RemoveBookmark deletes one of the user's bookmarks.
func (s *FirestoreStore) RemoveBookmark(ctx context.Context, userID, recipeID string) error {
	_, err := s.bookmarks(userID).Doc(recipeID).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	return nil
}

// IsBookmarked reports whether the user has a bookmark with the given title.
func (s *FirestoreStore) IsBookmarked(ctx context.Context, userID, title string) (bool, error) {
	iter := s.bookmarks(userID).Where("title", "==", title).Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}
	return true, nil
}
