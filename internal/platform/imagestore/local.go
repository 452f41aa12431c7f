// Package imagestore keeps uploaded ingredient photos on local disk and serves
// them back by URL.
package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
)

// MaxWidth is the width uploads are scaled down to.
const MaxWidth = 800

// ErrInvalidName is returned for user IDs or file names that would escape the store root.
var ErrInvalidName = errors.New("invalid upload name")

// LocalStore writes uploads below root and returns URLs below baseURL.
type LocalStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Root returns the directory uploads are written to.
func (s *LocalStore) Root() string {
	return s.root
}

// Upload stores the image under users/{uid}/images/{unixMillis}_{name} and
// returns its URL. JPEG and PNG images wider than MaxWidth are scaled down;
// other formats are stored as received.
func (s *LocalStore) Upload(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := filepath.Base(filename)
	if !safeSegment(userID) || !safeSegment(name) {
		return "", ErrInvalidName
	}
	name = strings.ReplaceAll(name, " ", "_")

	rel := path.Join("users", userID, "images", fmt.Sprintf("%d_%s", s.now().UnixMilli(), name))
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create images directory: %w", err)
	}

	encoded, err := downscale(data)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, encoded, 0644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	return s.baseURL + "/" + rel, nil
}

// downscale re-encodes JPEG and PNG images no wider than MaxWidth. Undecodable
// data is returned unchanged.
func downscale(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	if img.Bounds().Dx() <= MaxWidth {
		return data, nil
	}

	img = resize.Resize(MaxWidth, 0, img, resize.Lanczos3)

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, img, nil)
	case "png":
		err = png.Encode(&out, img)
	default:
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out.Bytes(), nil
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}
