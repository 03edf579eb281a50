package worker

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime/debug"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/photo-blur/internal/model"
)

// processor blurs the image at inputPath into outputPath.
type processor interface {
	BlurFile(ctx context.Context, inputPath, outputPath string) (image.Image, error)
}

// notifier presents the "photo blurred" notification.
// img is nil unless the worker is configured to attach the image.
type notifier interface {
	NotifyBlurred(ctx context.Context, outputPath string, img image.Image)
}

// BlurWorker is the background blur task. It runs once per work request
// and never retries on its own.
type BlurWorker struct {
	processor   processor
	notifier    notifier
	attachImage bool
}

// NewBlurWorker creates a BlurWorker. When attachImage is set the blurred
// bitmap is handed to the notifier as a preview.
func NewBlurWorker(p processor, n notifier, attachImage bool) *BlurWorker {
	return &BlurWorker{
		processor:   p,
		notifier:    n,
		attachImage: attachImage,
	}
}

// DoWork validates the input keys, blurs the image and reports the outcome.
// It never panics: anything escaping the processor becomes a failure.
func (w *BlurWorker) DoWork(ctx context.Context, input map[string]string) model.WorkResult {
	inputPath := input[model.KeyImagePath]
	if inputPath == "" {
		return model.Failure(fmt.Errorf("%w: %s", model.ErrMissingInput, model.KeyImagePath))
	}
	outputPath := input[model.KeyOutputPath]
	if outputPath == "" {
		return model.Failure(fmt.Errorf("%w: %s", model.ErrMissingInput, model.KeyOutputPath))
	}

	img, err := w.blur(ctx, inputPath, outputPath)
	if err != nil {
		zlog.Logger.Err(err).
			Str("input", inputPath).
			Str("output", outputPath).
			Msg("failed to blur image")
		return model.Failure(fmt.Errorf("blur: %w", err))
	}

	w.notify(ctx, outputPath, img)

	return model.Success(map[string]string{
		model.KeyBlurredImagePath: outputPath,
	})
}

// blur runs the processor. A panic removes whatever output was written.
func (w *BlurWorker) blur(ctx context.Context, inputPath, outputPath string) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("blur task panicked")
			_ = os.Remove(outputPath)
			img, err = nil, fmt.Errorf("blur task panicked: %v", r)
		}
	}()

	return w.processor.BlurFile(ctx, inputPath, outputPath)
}

// notify presents the result. The output is already written, so a
// failing notifier never turns the task into a failure.
func (w *BlurWorker) notify(ctx context.Context, outputPath string, img image.Image) {
	if w.notifier == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().
				Str("panic", fmt.Sprint(r)).
				Str("output", outputPath).
				Msg("notifier panicked")
		}
	}()

	var preview image.Image
	if w.attachImage {
		preview = img
	}
	w.notifier.NotifyBlurred(ctx, outputPath, preview)
}
