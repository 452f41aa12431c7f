package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pantrychef/internal/api"
	"pantrychef/internal/auth"
	"pantrychef/internal/inference"
	"pantrychef/internal/platform/imagestore"
	"pantrychef/internal/profile"
	"pantrychef/internal/quota"
	"pantrychef/internal/recipe"
	"pantrychef/internal/search"
)

// mockGenerator is a mock of the model client.
type mockGenerator struct {
	response       string
	returnError    error
	receivedPrompt string
	receivedImages []inference.Image
}

// Generate mocks the Generate method.
func (m *mockGenerator) Generate(ctx context.Context, prompt string, images []inference.Image) (string, error) {
	m.receivedPrompt = prompt
	m.receivedImages = images
	if m.returnError != nil {
		return "", m.returnError
	}
	return m.response, nil
}

// mockBookmarkStore is an in-memory recipe.Store.
type mockBookmarkStore struct {
	mu        sync.Mutex
	bookmarks map[string][]*recipe.Recipe
}

func newMockBookmarkStore() *mockBookmarkStore {
	return &mockBookmarkStore{bookmarks: make(map[string][]*recipe.Recipe)}
}

func (m *mockBookmarkStore) SaveBookmark(ctx context.Context, userID string, r *recipe.Recipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.NewString()
	stored := *r
	m.bookmarks[userID] = append(m.bookmarks[userID], &stored)
	return nil
}

func (m *mockBookmarkStore) ListBookmarks(ctx context.Context, userID string) ([]*recipe.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*recipe.Recipe(nil), m.bookmarks[userID]...), nil
}

func (m *mockBookmarkStore) RemoveBookmark(ctx context.Context, userID, recipeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.bookmarks[userID]
	for i, r := range list {
		if r.ID == recipeID {
			m.bookmarks[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return recipe.ErrNotFound
}

func (m *mockBookmarkStore) IsBookmarked(ctx context.Context, userID, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.bookmarks[userID] {
		if r.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// mockProfileStore is an in-memory profile.Store, also used as the quota store.
type mockProfileStore struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{profiles: make(map[string]*profile.Profile)}
}

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *mockProfileStore) Save(ctx context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *mockProfileStore) Sessions(ctx context.Context, userID string) (profile.Sessions, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return profile.Sessions{}, nil
	}
	return p.Sessions, nil
}

func (m *mockProfileStore) IncrementSession(ctx context.Context, userID, day string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		p = &profile.Profile{UserID: userID, Sessions: profile.Sessions{}}
		m.profiles[userID] = p
	}
	if p.Sessions == nil {
		p.Sessions = profile.Sessions{}
	}
	p.Sessions[day]++
	return p.Sessions[day], nil
}

type testEnv struct {
	router    *gin.Engine
	generator *mockGenerator
	bookmarks *mockBookmarkStore
	profiles  *mockProfileStore
}

func newTestEnv(t *testing.T, authMode string, maxCalls int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		generator: &mockGenerator{},
		bookmarks: newMockBookmarkStore(),
		profiles:  newMockProfileStore(),
	}

	now := func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local) }
	tracker := quota.NewTracker(env.profiles, maxCalls, zap.NewNop(), quota.WithClock(now))
	images := imagestore.NewLocalStore(t.TempDir(), "/images")
	svc := search.NewService(env.generator, tracker, images, env.bookmarks, zap.NewNop())
	handler := api.NewHandler(svc, env.bookmarks, env.profiles, tracker, zap.NewNop())

	env.router = api.NewRouter(handler, api.RouterConfig{
		AuthMode:       authMode,
		Verifier:       auth.NewTokenVerifier([]auth.User{{Token: "secret", UserID: "u1", Email: "cook@example.com"}}),
		MaxUploadBytes: 10 << 20,
	}, zap.NewNop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.UserHeader, "u1")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestSearchIngredients(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 5)
	env.generator.response = "Recipe 1:\nTitle: Tomato Soup\nIngredients:\n- Tomato\n- Salt\nSteps:\n1. Chop\n2. Boil\nPrep Time: 10 min"

	rr := env.do(t, http.MethodPost, "/api/search/ingredients", map[string]any{
		"ingredients": []string{"tomato", "salt"},
		"courseType":  "any",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result search.Result
	decodeBody(t, rr, &result)
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "Tomato Soup", result.Recipes[0].Title)
	assert.Equal(t, []string{"Tomato", "Salt"}, result.Recipes[0].Ingredients)
	assert.Equal(t, []string{"Chop", "Boil"}, result.Recipes[0].Steps)
	assert.Equal(t, "main course", result.Recipes[0].CourseType)
	assert.Equal(t, map[string]bool{"Tomato Soup": false}, result.Bookmarked)
	assert.Contains(t, env.generator.receivedPrompt, "tomato, salt")

	rr = env.do(t, http.MethodGet, "/api/recipes/Tomato%20Soup", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var detail recipe.Recipe
	decodeBody(t, rr, &detail)
	assert.True(t, strings.HasPrefix(detail.MarkdownContent, "# Tomato Soup"))

	rr = env.do(t, http.MethodGet, "/api/recipes/Pizza", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchIngredients_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 1)
	env.generator.response = `[{"title":"Toast"}]`
	body := map[string]any{"ingredients": []string{"bread"}}

	rr := env.do(t, http.MethodPost, "/api/search/ingredients", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/search/ingredients", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	var resp map[string]string
	decodeBody(t, rr, &resp)
	assert.Equal(t, api.CodeQuotaExceeded, resp["code"])
}

func TestSearchIngredients_BadRequests(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 5)

	rr := env.do(t, http.MethodPost, "/api/search/ingredients", map[string]any{"ingredients": []string{"egg"}, "courseType": "brunch"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/search/ingredients", map[string]any{"ingredients": []string{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	env.generator.returnError = errors.New("model unavailable")
	rr = env.do(t, http.MethodPost, "/api/search/ingredients", map[string]any{"ingredients": []string{"egg"}})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.NotContains(t, rr.Body.String(), "model unavailable")
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func TestSearchImages(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 5)
	env.generator.response = "```json\n{\"recipes\":[{\"title\":\"Caprese\",\"ingredients\":[\"Tomato\",\"Mozzarella\"]}]}\n```"

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "counter.png")
	require.NoError(t, err)
	_, err = part.Write(pngImage(t))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("courseType", "salad"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/search/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(auth.UserHeader, "u1")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result search.Result
	decodeBody(t, rr, &result)
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "salad", result.Recipes[0].CourseType)
	require.Len(t, result.ImageURLs, 1)
	assert.True(t, strings.HasPrefix(result.ImageURLs[0], "/images/users/u1/images/"))

	require.Len(t, env.generator.receivedImages, 1)
	assert.Equal(t, "image/png", env.generator.receivedImages[0].MIMEType)
	assert.Contains(t, env.generator.receivedPrompt, "an image of food ingredients")
}

func TestSearchImages_UnsupportedType(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 5)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("just some text"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/search/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp map[string]string
	decodeBody(t, rr, &resp)
	assert.Equal(t, api.CodeInvalidImageType, resp["code"])
}

func TestBookmarks(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 5)
	soup := map[string]any{
		"title":       "Tomato Soup",
		"ingredients": []string{"Tomato"},
		"steps":       []string{"Boil"},
	}

	rr := env.do(t, http.MethodPost, "/api/bookmarks", soup)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var saved recipe.Recipe
	decodeBody(t, rr, &saved)
	assert.NotEmpty(t, saved.ID)
	assert.Contains(t, saved.MarkdownContent, "# Tomato Soup")

	rr = env.do(t, http.MethodPost, "/api/bookmarks", soup)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/bookmarks", map[string]any{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/bookmarks/status?title=Tomato%20Soup", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"title":"Tomato Soup","bookmarked":true}`, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/bookmarks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Bookmarks []recipe.Recipe `json:"bookmarks"`
	}
	decodeBody(t, rr, &list)
	require.Len(t, list.Bookmarks, 1)
	assert.Equal(t, saved.ID, list.Bookmarks[0].ID)

	rr = env.do(t, http.MethodDelete, "/api/bookmarks/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/bookmarks/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/bookmarks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"bookmarks":[]}`, rr.Body.String())
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, auth.ModeDisabled, 3)

	rr := env.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Profile profile.Profile `json:"profile"`
		Usage   quota.Usage     `json:"usage"`
	}
	decodeBody(t, rr, &resp)
	assert.Equal(t, "u1", resp.Profile.UserID)
	assert.Equal(t, quota.Usage{Day: "2026-10-17", Used: 0, Limit: 3}, resp.Usage)

	stored, err := env.profiles.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestTokenMode(t *testing.T) {
	env := newTestEnv(t, auth.ModeToken, 5)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "secret"})
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
