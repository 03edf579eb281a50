package blur

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/model"
)

// BlurredImageName is the cache file the blur task writes to.
const BlurredImageName = "blurred_image.png"

var (
	ErrNoImage   = errors.New("no image selected")
	ErrCancelled = errors.New("capture cancelled")
)

// acquirer obtains the image to blur.
type acquirer interface {
	Pick(ctx context.Context, r io.Reader) (image.Image, error)
	Capture(ctx context.Context) (image.Image, error)
	SaveToCache(ctx context.Context, img image.Image) (string, error)
}

// dispatcher schedules blur work and exposes its lifecycle.
type dispatcher interface {
	Enqueue(ctx context.Context, req model.WorkRequest) (uuid.UUID, error)
	WorkInfo(ctx context.Context, id uuid.UUID) (model.WorkInfo, error)
	WorkInfosByTag(ctx context.Context, tag string) ([]model.WorkInfo, error)
	Observe(tag string) (<-chan model.WorkInfo, func())
}

// cache is the private cache directory.
type cache interface {
	Path(name string) (string, error)
	Load(ctx context.Context, name string) (io.ReadCloser, error)
}

// Service ties image acquisition to the blur task. It keeps the image
// currently shown to the user: the last selection, replaced by the
// blurred result once a blur succeeds.
type Service struct {
	acquirer   acquirer
	dispatcher dispatcher
	cache      cache

	mu      sync.RWMutex
	current string // absolute path of the displayed image
}

// NewService creates a new Service.
func NewService(a acquirer, d dispatcher, c cache) *Service {
	return &Service{
		acquirer:   a,
		dispatcher: d,
		cache:      c,
	}
}

// Upload decodes a picked image, caches it and makes it the current image.
func (s *Service) Upload(ctx context.Context, r io.Reader) (string, error) {
	img, err := s.acquirer.Pick(ctx, r)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return s.show(ctx, img)
}

// Capture takes a picture and makes it the current image. A cancelled
// capture leaves the current image untouched and returns ErrCancelled.
func (s *Service) Capture(ctx context.Context) (string, error) {
	img, err := s.acquirer.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	if img == nil {
		return "", ErrCancelled
	}

	return s.show(ctx, img)
}

func (s *Service) show(ctx context.Context, img image.Image) (string, error) {
	path, err := s.acquirer.SaveToCache(ctx, img)
	if err != nil {
		return "", err
	}

	s.setCurrent(path)

	return path, nil
}

// Blur enqueues the blur task for the current image.
func (s *Service) Blur(ctx context.Context) (uuid.UUID, error) {
	input := s.Current()
	if input == "" {
		return uuid.Nil, ErrNoImage
	}

	output, err := s.cache.Path(BlurredImageName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("blur: %w", err)
	}

	id, err := s.dispatcher.Enqueue(ctx, model.WorkRequest{
		Tags: []string{model.TagImageBlur},
		Input: map[string]string{
			model.KeyImagePath:  input,
			model.KeyOutputPath: output,
		},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("blur: %w", err)
	}

	zlog.Logger.Info().
		Str("id", id.String()).
		Str("input", input).
		Msg("blur enqueued")

	return id, nil
}

// Watch follows blur works until ctx is done and shows each successful
// result. It is the only writer of blurred results to the current image.
func (s *Service) Watch(ctx context.Context) {
	updates, cancel := s.dispatcher.Observe(model.TagImageBlur)
	defer cancel()

	s.follow(ctx, updates)
}

func (s *Service) follow(ctx context.Context, updates <-chan model.WorkInfo) {
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-updates:
			if !ok {
				return
			}
			if info.State != model.StateSucceeded {
				continue
			}

			path := info.Output[model.KeyBlurredImagePath]
			if path == "" {
				continue
			}

			s.setCurrent(path)
			zlog.Logger.Info().
				Str("id", info.ID.String()).
				Str("path", path).
				Msg("showing blurred image")
		}
	}
}

// Current returns the path of the displayed image, or "" if none.
func (s *Service) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

func (s *Service) setCurrent(path string) {
	s.mu.Lock()
	s.current = path
	s.mu.Unlock()
}

// OpenCurrent opens the displayed image.
func (s *Service) OpenCurrent(ctx context.Context) (io.ReadCloser, error) {
	path := s.Current()
	if path == "" {
		return nil, ErrNoImage
	}

	return s.cache.Load(ctx, filepath.Base(path))
}

// Work returns the lifecycle of a single blur.
func (s *Service) Work(ctx context.Context, id uuid.UUID) (model.WorkInfo, error) {
	return s.dispatcher.WorkInfo(ctx, id)
}

// Works returns all works with tag, newest first.
func (s *Service) Works(ctx context.Context, tag string) ([]model.WorkInfo, error) {
	if tag == "" {
		tag = model.TagImageBlur
	}

	return s.dispatcher.WorkInfosByTag(ctx, tag)
}

// OpenCache opens a file from the cache directory by name.
func (s *Service) OpenCache(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.cache.Load(ctx, name)
}
