// Package search runs a recipe search end to end: quota check, image upload,
// model call, normalization, quota record and result caching.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pantrychef/internal/auth"
	"pantrychef/internal/inference"
	"pantrychef/internal/recipe"
)

var (
	ErrQuotaExceeded    = errors.New("daily free tier limit reached")
	ErrNoInput          = errors.New("no ingredients or images provided")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrUpload           = errors.New("failed to upload images")
	ErrInference        = errors.New("failed to generate recipes")
	ErrNotCached        = errors.New("recipe not in recent results")
)

// DefaultCacheTTL is how long a user's last results stay available.
const DefaultCacheTTL = 30 * time.Minute

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// SupportedImageType reports whether photos of the given MIME type are accepted.
func SupportedImageType(mimeType string) bool {
	return supportedImageTypes[strings.ToLower(mimeType)]
}

// QuotaGate is the part of the quota tracker the search flow needs.
type QuotaGate interface {
	Allow(ctx context.Context, userID string) bool
	Record(ctx context.Context, userID string) bool
}

// ImageUploader stores a photo and returns its URL.
type ImageUploader interface {
	Upload(ctx context.Context, userID, filename string, data []byte) (string, error)
}

// BookmarkChecker reports whether the user already bookmarked a title.
type BookmarkChecker interface {
	IsBookmarked(ctx context.Context, userID, title string) (bool, error)
}

// Result is the outcome of one search.
type Result struct {
	Recipes    []recipe.Recipe `json:"recipes"`
	Bookmarked map[string]bool `json:"bookmarked"`
	ImageURLs  []string        `json:"imageUrls,omitempty"`
}

// Service implements both search modes.
type Service struct {
	generator  inference.Generator
	normalizer recipe.Normalizer
	quota      QuotaGate
	images     ImageUploader
	bookmarks  BookmarkChecker
	cache      *Cache
	logger     *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithNormalizer replaces the default response normalizer.
func WithNormalizer(n recipe.Normalizer) Option {
	return func(s *Service) { s.normalizer = n }
}

// WithCache replaces the default results cache.
func WithCache(c *Cache) Option {
	return func(s *Service) { s.cache = c }
}

// NewService creates a new Service. images and bookmarks may be nil.
func NewService(generator inference.Generator, quota QuotaGate, images ImageUploader, bookmarks BookmarkChecker, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		generator:  generator,
		normalizer: recipe.DefaultNormalizer,
		quota:      quota,
		images:     images,
		bookmarks:  bookmarks,
		cache:      NewCache(DefaultCacheTTL),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the results cache.
func (s *Service) Cache() *Cache {
	return s.cache
}

// SearchIngredients suggests recipes for a list of ingredient names.
func (s *Service) SearchIngredients(ctx context.Context, session auth.Session, ingredients []string, filter recipe.CourseType) (*Result, error) {
	cleaned := make([]string, 0, len(ingredients))
	for _, ingredient := range ingredients {
		if ingredient = strings.TrimSpace(ingredient); ingredient != "" {
			cleaned = append(cleaned, ingredient)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoInput
	}

	if !s.quota.Allow(ctx, session.UserID) {
		return nil, ErrQuotaExceeded
	}

	raw, err := s.generate(ctx, session, recipe.IngredientsPrompt(cleaned, filter), nil)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, session, raw, recipe.ModeIngredients, filter), nil
}

// SearchImages suggests recipes for photos of ingredients. Every photo is
// uploaded before the model is called; the search fails only when none of
// them could be stored.
func (s *Service) SearchImages(ctx context.Context, session auth.Session, images []inference.Image, filter recipe.CourseType) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrNoInput
	}
	for _, img := range images {
		if !SupportedImageType(img.MIMEType) {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedImage, img.MIMEType)
		}
	}

	if !s.quota.Allow(ctx, session.UserID) {
		return nil, ErrQuotaExceeded
	}

	urls, err := s.upload(ctx, session, images)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, session, recipe.ImagesPrompt(len(images), filter), images)
	if err != nil {
		return nil, err
	}

	result := s.finish(ctx, session, raw, recipe.ModeImages, filter)
	result.ImageURLs = urls
	return result, nil
}

// Result returns a recipe from the user's latest search, with its Markdown
// rendering filled in.
func (s *Service) Result(session auth.Session, title string) (recipe.Recipe, error) {
	r, ok := s.cache.Find(session.UserID, title)
	if !ok {
		return recipe.Recipe{}, ErrNotCached
	}
	return r.WithMarkdown(), nil
}

func (s *Service) upload(ctx context.Context, session auth.Session, images []inference.Image) ([]string, error) {
	if s.images == nil {
		return nil, nil
	}

	urls := make([]string, 0, len(images))
	for i, img := range images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image_%d", i+1)
		}
		url, err := s.images.Upload(ctx, session.UserID, name, img.Data)
		if err != nil {
			s.logger.Warn("failed to upload image",
				zap.String("user_id", session.UserID),
				zap.String("filename", name),
				zap.Error(err),
			)
			continue
		}
		urls = append(urls, url)
	}
	if len(urls) == 0 {
		return nil, ErrUpload
	}
	return urls, nil
}

func (s *Service) generate(ctx context.Context, session auth.Session, prompt string, images []inference.Image) (string, error) {
	start := time.Now()
	raw, err := s.generator.Generate(ctx, prompt, images)
	if err != nil {
		s.logger.Error("model call failed",
			zap.String("user_id", session.UserID),
			zap.Int("images", len(images)),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", ErrInference, err)
	}
	s.logger.Info("model call succeeded",
		zap.String("user_id", session.UserID),
		zap.Int("images", len(images)),
		zap.Int("response_bytes", len(raw)),
		zap.Duration("latency", time.Since(start)),
	)
	return raw, nil
}

func (s *Service) finish(ctx context.Context, session auth.Session, raw string, mode recipe.Mode, filter recipe.CourseType) *Result {
	recipes := s.normalizer.Normalize(raw, mode, filter)
	if recipes == nil {
		recipes = []recipe.Recipe{}
	}

	if !s.quota.Record(ctx, session.UserID) {
		s.logger.Warn("search not counted against quota",
			zap.String("user_id", session.UserID),
			zap.String("mode", mode.String()),
		)
	}
	s.cache.Put(session.UserID, recipes)

	s.logger.Info("search completed",
		zap.String("user_id", session.UserID),
		zap.String("mode", mode.String()),
		zap.String("course_type", string(filter)),
		zap.Int("recipes", len(recipes)),
	)

	return &Result{
		Recipes:    recipes,
		Bookmarked: s.bookmarkedTitles(ctx, session, recipes),
	}
}

func (s *Service) bookmarkedTitles(ctx context.Context, session auth.Session, recipes []recipe.Recipe) map[string]bool {
	marks := make(map[string]bool, len(recipes))
	if s.bookmarks == nil {
		return marks
	}
	for _, r := range recipes {
		if _, seen := marks[r.Title]; seen {
			continue
		}
		ok, err := s.bookmarks.IsBookmarked(ctx, session.UserID, r.Title)
		if err != nil {
			s.logger.Warn("failed to check bookmark",
				zap.String("user_id", session.UserID),
				zap.String("title", r.Title),
				zap.Error(err),
			)
		}
		marks[r.Title] = ok
	}
	return marks
}
