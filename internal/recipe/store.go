package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a bookmark does not exist for the user.
var ErrNotFound = errors.New("bookmark not found")

// Store defines the bookmark operations of the recipe query facade.
type Store interface {
	SaveBookmark(ctx context.Context, userID string, recipe *Recipe) error
	ListBookmarks(ctx context.Context, userID string) ([]*Recipe, error)
	RemoveBookmark(ctx context.Context, userID, recipeID string) error
	IsBookmarked(ctx context.Context, userID, title string) (bool, error)
}

// PostgresStore implements Store for PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// bookmarkRow is the database shape of a bookmark; list fields are JSONB.
type bookmarkRow struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	Title           string    `db:"title"`
	Ingredients     []byte    `db:"ingredients"`
	Steps           []byte    `db:"steps"`
	ImageURL        string    `db:"image_url"`
	PrepTime        string    `db:"prep_time"`
	CookTime        string    `db:"cook_time"`
	CourseType      string    `db:"course_type"`
	MarkdownContent string    `db:"markdown_content"`
	CreatedAt       time.Time `db:"created_at"`
}

// NewPostgresStore creates a new PostgresStore and makes sure its table exists.
func NewPostgresStore(db *sqlx.DB) (*PostgresStore, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		ingredients JSONB NOT NULL DEFAULT '[]',
		steps JSONB NOT NULL DEFAULT '[]',
		image_url TEXT NOT NULL DEFAULT '',
		prep_time TEXT NOT NULL DEFAULT '',
		cook_time TEXT NOT NULL DEFAULT '',
		course_type TEXT NOT NULL DEFAULT '',
		markdown_content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create bookmarks table: %w", err)
	}

	index := `CREATE INDEX IF NOT EXISTS bookmarks_user_title_idx ON bookmarks (user_id, title);`
	if _, err := db.Exec(index); err != nil {
		return nil, fmt.Errorf("failed to create bookmarks index: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// SaveBookmark stores a copy of the recipe for the user and assigns its ID.
func (s *PostgresStore) SaveBookmark(ctx context.Context, userID string, recipe *Recipe) error {
	ingredientsJSON, err := json.Marshal(nonNil(recipe.Ingredients))
	if err != nil {
		return fmt.Errorf("failed to marshal ingredients: %w", err)
	}
	stepsJSON, err := json.Marshal(nonNil(recipe.Steps))
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, title, ingredients, steps, image_url, prep_time, cook_time, course_type, markdown_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id,
		userID,
		recipe.Title,
		ingredientsJSON,
		stepsJSON,
		recipe.ImageURL,
		recipe.PrepTime,
		recipe.CookTime,
		recipe.CourseType,
		recipe.MarkdownContent,
	)
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}

	recipe.ID = id
	return nil
}

// ListBookmarks returns the user's bookmarks, newest first.
func (s *PostgresStore) ListBookmarks(ctx context.Context, userID string) ([]*Recipe, error) {
	var rows []bookmarkRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, title, ingredients, steps, image_url, prep_time, cook_time, course_type, markdown_content, created_at
		FROM bookmarks WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	recipes := make([]*Recipe, 0, len(rows))
	for _, row := range rows {
		r, err := row.recipe()
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, r)
	}
	return recipes, nil
}

// RemoveBookmark deletes one of the user's bookmarks.
func (s *PostgresStore) RemoveBookmark(ctx context.Context, userID, recipeID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_id = $1 AND id = $2", userID, recipeID)
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsBookmarked reports whether the user has a bookmark with the given title.
func (s *PostgresStore) IsBookmarked(ctx context.Context, userID, title string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM bookmarks WHERE user_id = $1 AND title = $2)", userID, title)
	if err != nil {
		return false, fmt.Errorf("failed to check bookmark: %w", err)
	}
	return exists, nil
}

func (row bookmarkRow) recipe() (*Recipe, error) {
	r := &Recipe{
		ID:              row.ID,
		Title:           row.Title,
		ImageURL:        row.ImageURL,
		PrepTime:        row.PrepTime,
		CookTime:        row.CookTime,
		CourseType:      row.CourseType,
		MarkdownContent: row.MarkdownContent,
	}
	if err := json.Unmarshal(row.Ingredients, &r.Ingredients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingredients: %w", err)
	}
	if err := json.Unmarshal(row.Steps, &r.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}
	r.ensureSlices()
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
