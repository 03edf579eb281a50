package blur

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/acquire"
	"github.com/aliskhannn/photo-blur/internal/api/respond"
	"github.com/aliskhannn/photo-blur/internal/dispatcher"
	"github.com/aliskhannn/photo-blur/internal/model"
	"github.com/aliskhannn/photo-blur/internal/repository/work"
	blursvc "github.com/aliskhannn/photo-blur/internal/service/blur"
	"github.com/aliskhannn/photo-blur/internal/storage/file"
)

// maxUploadMemory is the multipart memory limit for picked images.
const maxUploadMemory = 10 << 20

// service defines the interface for the blur flow.
type service interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
	Capture(ctx context.Context) (string, error)
	Blur(ctx context.Context) (uuid.UUID, error)
	OpenCurrent(ctx context.Context) (io.ReadCloser, error)
	Work(ctx context.Context, id uuid.UUID) (model.WorkInfo, error)
	Works(ctx context.Context, tag string) ([]model.WorkInfo, error)
	OpenCache(ctx context.Context, name string) (io.ReadCloser, error)
}

// Handler provides HTTP handlers for the blur endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Upload handles a picked image sent as the multipart field "image".
// The image becomes the one shown and blurred next.
func (h *Handler) Upload(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	f, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to upload the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	}
	defer f.Close()

	zlog.Logger.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Msg("image picked")

	path, err := h.service.Upload(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, map[string]interface{}{
		"path": path,
	})
}

// Capture takes a picture with the configured camera.
func (h *Handler) Capture(c *ginext.Context) {
	path, err := h.service.Capture(c.Request.Context())
	if err != nil {
		if errors.Is(err, blursvc.ErrCancelled) {
			c.Status(http.StatusNoContent)
			return
		}
		h.fail(c, err)
		return
	}

	respond.OK(c, map[string]interface{}{
		"path": path,
	})
}

// Blur enqueues the blur task for the current image.
func (h *Handler) Blur(c *ginext.Context) {
	id, err := h.service.Blur(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.Accepted(c, map[string]interface{}{
		"id":  id,
		"tag": model.TagImageBlur,
	})
}

// Current serves the image currently shown to the user.
func (h *Handler) Current(c *ginext.Context) {
	reader, err := h.service.OpenCurrent(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	defer reader.Close()

	// The current image changes in place when a blur finishes.
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")

	respond.PNG(c, http.StatusOK, reader)
}

// Work returns the lifecycle of a single blur work.
func (h *Handler) Work(c *ginext.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return
	}

	info, err := h.service.Work(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, info)
}

// Works lists works by tag (default "image_blur"), newest first.
func (h *Handler) Works(c *ginext.Context) {
	infos, err := h.service.Works(c.Request.Context(), c.Query("tag"))
	if err != nil {
		h.fail(c, err)
		return
	}

	respond.OK(c, infos)
}

// Cache serves a file from the cache directory. It is the target of the
// notification's "View Image" action.
func (h *Handler) Cache(c *ginext.Context) {
	reader, err := h.service.OpenCache(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer reader.Close()

	respond.PNG(c, http.StatusOK, reader)
}

// fail maps service errors to HTTP statuses.
func (h *Handler) fail(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, acquire.ErrDecode):
		respond.Fail(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, acquire.ErrPermissionDenied):
		respond.Fail(c, http.StatusForbidden, err)
	case errors.Is(err, blursvc.ErrNoImage):
		respond.Fail(c, http.StatusConflict, err)
	case errors.Is(err, work.ErrWorkNotFound), errors.Is(err, file.ErrFileNotFound):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, file.ErrInvalidName):
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, dispatcher.ErrShutdown):
		respond.Fail(c, http.StatusServiceUnavailable, err)
	default:
		zlog.Logger.Err(err).Msg("request failed")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("internal error"))
	}
}
