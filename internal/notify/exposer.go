package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

// ErrNotExposable is returned for files outside the exposed directory.
var ErrNotExposable = errors.New("file cannot be exposed")

// HTTPExposer exposes cache files through the service's own
// /api/cache/:name route.
type HTTPExposer struct {
	baseURL  string
	cacheDir string
}

// NewHTTPExposer creates an HTTPExposer for files in cacheDir.
func NewHTTPExposer(baseURL, cacheDir string) *HTTPExposer {
	return &HTTPExposer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		cacheDir: filepath.Clean(cacheDir),
	}
}

// Expose returns the public URL of path.
func (e *HTTPExposer) Expose(ctx context.Context, path string) (string, error) {
	if filepath.Dir(filepath.Clean(path)) != e.cacheDir {
		return "", fmt.Errorf("%w: %s", ErrNotExposable, path)
	}

	return e.baseURL + "/api/cache/" + url.PathEscape(filepath.Base(path)), nil
}

// objectStorage uploads objects and signs read URLs for them.
type objectStorage interface {
	Save(ctx context.Context, subdir, filename string, src io.Reader, size int64, contentType string) (string, error)
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, objectName string) error
}

// ObjectExposer mirrors the file to object storage and hands out a
// presigned URL, which is a time-limited read grant.
type ObjectExposer struct {
	store    objectStorage
	expiry   time.Duration
	strategy retry.Strategy
}

// NewObjectExposer creates an ObjectExposer. Uploads are retried with s.
func NewObjectExposer(store objectStorage, expiry time.Duration, s retry.Strategy) *ObjectExposer {
	if s.Attempts < 1 {
		s.Attempts = 1
	}

	return &ObjectExposer{
		store:    store,
		expiry:   expiry,
		strategy: s,
	}
}

// Expose uploads path under a unique name and returns its presigned URL.
// Every blur gets its own object, so older notifications keep pointing
// at their own result.
func (e *ObjectExposer) Expose(ctx context.Context, path string) (string, error) {
	filename := uuid.NewString() + "-" + filepath.Base(path)

	var objectName string
	err := retry.Do(func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			return err
		}

		objectName, err = e.store.Save(ctx, "blurred", filename, f, st.Size(), "image/png")
		return err
	}, e.strategy)
	if err != nil {
		return "", fmt.Errorf("expose: upload %s: %w", path, err)
	}

	uri, err := e.store.PresignedURL(ctx, objectName, e.expiry)
	if err != nil {
		// An unsigned object is unreachable, drop it.
		_ = e.store.Delete(ctx, objectName)
		return "", fmt.Errorf("expose: %w", err)
	}

	return uri, nil
}
