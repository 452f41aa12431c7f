package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pantrychef/internal/auth"
	"pantrychef/internal/inference"
	"pantrychef/internal/profile"
	"pantrychef/internal/quota"
	"pantrychef/internal/recipe"
	"pantrychef/internal/search"
)

const (
	searchTimeout = 45 * time.Second
	storeTimeout  = 5 * time.Second
)

// Searcher defines the search operations used by the handlers.
type Searcher interface {
	SearchIngredients(ctx context.Context, session auth.Session, ingredients []string, filter recipe.CourseType) (*search.Result, error)
	SearchImages(ctx context.Context, session auth.Session, images []inference.Image, filter recipe.CourseType) (*search.Result, error)
	Result(session auth.Session, title string) (recipe.Recipe, error)
}

// UsageReporter reports today's quota usage for a user.
type UsageReporter interface {
	Usage(ctx context.Context, userID string) (quota.Usage, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Search    Searcher
	Bookmarks recipe.Store
	Profiles  profile.Store
	Quota     UsageReporter
	MaxFiles  int
	Logger    *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(searcher Searcher, bookmarks recipe.Store, profiles profile.Store, usage UsageReporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Search:    searcher,
		Bookmarks: bookmarks,
		Profiles:  profiles,
		Quota:     usage,
		MaxFiles:  5,
		Logger:    logger,
	}
}

type ingredientsRequest struct {
	Ingredients []string `json:"ingredients"`
	CourseType  string   `json:"courseType"`
}

// session returns the caller's Session, writing a 401 when there is none.
func session(c *gin.Context) (auth.Session, bool) {
	s, ok := auth.SessionFrom(c)
	if !ok {
		respondError(c, NewError(http.StatusUnauthorized, CodeUnauthorized, "sign in required", nil))
	}
	return s, ok
}

// SearchIngredients suggests recipes for a list of ingredient names.
func (h *Handler) SearchIngredients(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	var req ingredientsRequest
	if err := decodeJSON(c.Request.Body, &req); err != nil {
		respondError(c, badRequest("invalid request body", err))
		return
	}
	filter, err := recipe.ParseCourseType(req.CourseType)
	if err != nil {
		respondError(c, badRequest(err.Error(), err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	result, err := h.Search.SearchIngredients(ctx, s, req.Ingredients, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SearchImages suggests recipes for uploaded photos of ingredients.
func (h *Handler) SearchImages(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, badRequest("expected a multipart form", err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if h.MaxFiles > 0 && len(files) > h.MaxFiles {
		respondError(c, badRequest(fmt.Sprintf("at most %d images per search", h.MaxFiles), nil))
		return
	}

	filter, err := recipe.ParseCourseType(c.PostForm("courseType"))
	if err != nil {
		respondError(c, badRequest(err.Error(), err))
		return
	}

	images := make([]inference.Image, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			respondError(c, badRequest("failed to read image", err))
			return
		}
		images = append(images, img)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), searchTimeout)
	defer cancel()

	result, err := h.Search.SearchImages(ctx, s, images, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetResult returns a recipe from the caller's latest search.
func (h *Handler) GetResult(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	r, err := h.Search.Result(s, c.Param("title"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// ListBookmarks returns the caller's bookmarks, newest first.
func (h *Handler) ListBookmarks(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	recipes, err := h.Bookmarks.ListBookmarks(ctx, s.UserID)
	if err != nil {
		h.Logger.Error("failed to list bookmarks", zap.String("user_id", s.UserID), zap.Error(err))
		respondError(c, err)
		return
	}
	if recipes == nil {
		recipes = []*recipe.Recipe{}
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": recipes})
}

// SaveBookmark stores a copy of a recipe for the caller.
func (h *Handler) SaveBookmark(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	var r recipe.Recipe
	if err := decodeJSON(c.Request.Body, &r); err != nil {
		respondError(c, badRequest("invalid recipe", err))
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		respondError(c, badRequest("title is required", nil))
		return
	}
	r.ID = ""
	r = r.WithMarkdown()

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	exists, err := h.Bookmarks.IsBookmarked(ctx, s.UserID, r.Title)
	if err != nil {
		h.Logger.Error("failed to check bookmark", zap.String("user_id", s.UserID), zap.Error(err))
		respondError(c, err)
		return
	}
	if exists {
		respondError(c, NewError(http.StatusConflict, CodeConflict, "recipe is already bookmarked", nil))
		return
	}

	if err := h.Bookmarks.SaveBookmark(ctx, s.UserID, &r); err != nil {
		h.Logger.Error("failed to save bookmark", zap.String("user_id", s.UserID), zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// DeleteBookmark removes one of the caller's bookmarks.
func (h *Handler) DeleteBookmark(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.Bookmarks.RemoveBookmark(ctx, s.UserID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BookmarkStatus reports whether the caller bookmarked a title.
func (h *Handler) BookmarkStatus(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		respondError(c, badRequest("title is required", nil))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	bookmarked, err := h.Bookmarks.IsBookmarked(ctx, s.UserID, title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title, "bookmarked": bookmarked})
}

// GetProfile returns the caller's profile, creating it on first visit, and
// today's free tier usage.
func (h *Handler) GetProfile(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	p, err := profile.Ensure(ctx, h.Profiles, s.UserID, s.Email)
	if err != nil {
		h.Logger.Error("failed to load profile", zap.String("user_id", s.UserID), zap.Error(err))
		respondError(c, err)
		return
	}

	resp := gin.H{"profile": p}
	if h.Quota != nil {
		usage, err := h.Quota.Usage(ctx, s.UserID)
		if err != nil {
			h.Logger.Warn("failed to read quota usage", zap.String("user_id", s.UserID), zap.Error(err))
		} else {
			resp["usage"] = usage
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readImage(fh *multipart.FileHeader) (inference.Image, error) {
	src, err := fh.Open()
	if err != nil {
		return inference.Image{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return inference.Image{}, err
	}

	return inference.Image{
		Filename: filepath.Base(fh.Filename),
		MIMEType: imageType(fh, data),
		Data:     data,
	}, nil
}

// imageType prefers the part's declared type, then content sniffing, then the
// file extension for formats the sniffer does not know (HEIC).
func imageType(fh *multipart.FileHeader, data []byte) string {
	declared := strings.ToLower(strings.TrimSpace(fh.Header.Get("Content-Type")))
	if search.SupportedImageType(declared) {
		return declared
	}
	if sniffed := http.DetectContentType(data); search.SupportedImageType(sniffed) {
		return sniffed
	}
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}
