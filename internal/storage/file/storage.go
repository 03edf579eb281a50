package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

// Storage is the application's private cache directory. It only deals in
// flat file names; anything that would escape the directory is rejected.
type Storage struct {
	dir string
}

// NewStorage creates the cache directory if needed.
func NewStorage(dir string) (*Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Storage{dir: abs}, nil
}

// Dir returns the absolute cache directory.
func (s *Storage) Dir() string {
	return s.dir
}

// Path returns the absolute path of name inside the cache.
func (s *Storage) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// Save writes src to name, replacing any previous file, and returns its
// absolute path. The write goes through a temp file so readers never see
// a half-written image.
func (s *Storage) Save(ctx context.Context, name string, src io.Reader) (string, error) {
	dst, err := s.Path(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return "", fmt.Errorf("save: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("save: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save: close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("save: rename %s: %w", name, err)
	}

	return dst, nil
}

// Load opens name for reading.
func (s *Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("load: %w", err)
	}

	return f, nil
}
