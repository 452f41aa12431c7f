package imagestore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStore(t *testing.T) *LocalStore {
	s := NewLocalStore(t.TempDir(), "/images/")
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestUpload_ScalesWideImages(t *testing.T) {
	s := newTestStore(t)

	url, err := s.Upload(context.Background(), "u1", "fridge shelf.png", pngBytes(t, 1600, 400))
	require.NoError(t, err)
	assert.Equal(t, "/images/users/u1/images/1700000000000_fridge_shelf.png", url)

	path := filepath.Join(s.Root(), "users", "u1", "images", "1700000000000_fridge_shelf.png")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, MaxWidth, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
}

func TestUpload_KeepsSmallAndUnknownImages(t *testing.T) {
	s := newTestStore(t)

	small := pngBytes(t, 10, 10)
	_, err := s.Upload(context.Background(), "u1", "small.png", small)
	require.NoError(t, err)
	stored, err := os.ReadFile(filepath.Join(s.Root(), "users", "u1", "images", "1700000000000_small.png"))
	require.NoError(t, err)
	assert.Equal(t, small, stored)

	raw := []byte("not really an image")
	_, err = s.Upload(context.Background(), "u1", "photo.heic", raw)
	require.NoError(t, err)
	stored, err = os.ReadFile(filepath.Join(s.Root(), "users", "u1", "images", "1700000000000_photo.heic"))
	require.NoError(t, err)
	assert.Equal(t, raw, stored)
}

func TestUpload_RejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, user := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.Upload(context.Background(), user, "x.png", []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidName, "user %q", user)
	}

	url, err := s.Upload(context.Background(), "u1", "../../etc/passwd", []byte("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "_passwd"))
}
