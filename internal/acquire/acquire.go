package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/webp" // register WebP for picked files

	"github.com/aliskhannn/photo-blur/internal/permission"
)

// SelectedImageName is the cache file handed to the blur task.
const SelectedImageName = "selected_image.png"

var (
	ErrDecode           = errors.New("failed to decode image")
	ErrPermissionDenied = errors.New("camera permission not granted")
)

// camera returns a single frame. A nil reader means the user cancelled.
type camera interface {
	Capture(ctx context.Context) (io.ReadCloser, error)
}

// cache persists the selected image.
type cache interface {
	Save(ctx context.Context, name string, src io.Reader) (string, error)
}

// permissions reports runtime grants.
type permissions interface {
	Granted(p permission.Permission) bool
}

// Acquirer obtains images from a picked file or from the camera.
type Acquirer struct {
	camera camera
	cache  cache
	perms  permissions
}

// New creates an Acquirer. cam may be nil when no camera is configured;
// Capture then behaves as if the permission was never granted.
func New(cam camera, c cache, perms permissions) *Acquirer {
	return &Acquirer{
		camera: cam,
		cache:  c,
		perms:  perms,
	}
}

// Pick decodes a user-selected content stream.
func (a *Acquirer) Pick(ctx context.Context, r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return img, nil
}

// Capture takes a picture. Without the camera permission the camera is
// never touched. A cancelled capture returns a nil image and no error.
func (a *Acquirer) Capture(ctx context.Context) (image.Image, error) {
	if a.camera == nil || !a.perms.Granted(permission.Camera) {
		return nil, ErrPermissionDenied
	}

	frame, err := a.camera.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if frame == nil {
		zlog.Logger.Debug().Msg("capture cancelled")
		return nil, nil
	}
	defer frame.Close()

	return a.Pick(ctx, frame)
}

// SaveToCache writes img as PNG to the cache and returns its absolute path.
func (a *Acquirer) SaveToCache(ctx context.Context, img image.Image) (string, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode selected image: %w", err)
	}

	path, err := a.cache.Save(ctx, SelectedImageName, buf)
	if err != nil {
		return "", fmt.Errorf("save selected image: %w", err)
	}

	return path, nil
}
