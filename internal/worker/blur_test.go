package worker

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/photo-blur/internal/model"
	imgproc "github.com/aliskhannn/photo-blur/internal/processor"
)

type processorMock struct {
	calls int
	img   image.Image
	err   error
	panic bool
	// partial is written to the output path before panicking.
	partial []byte
}

func (m *processorMock) BlurFile(ctx context.Context, inputPath, outputPath string) (image.Image, error) {
	m.calls++
	if m.panic {
		if m.partial != nil {
			_ = os.WriteFile(outputPath, m.partial, 0o600)
		}
		panic("out of memory")
	}
	return m.img, m.err
}

type notifierMock struct {
	calls int
	path  string
	img   image.Image
	panic bool
}

func (m *notifierMock) NotifyBlurred(ctx context.Context, outputPath string, img image.Image) {
	m.calls++
	if m.panic {
		panic("notification channel missing")
	}
	m.path = outputPath
	m.img = img
}

func TestDoWorkMissingInput(t *testing.T) {
	cases := []map[string]string{
		nil,
		{model.KeyOutputPath: "/tmp/out.png"},
		{model.KeyImagePath: "/tmp/in.png"},
		{model.KeyImagePath: "", model.KeyOutputPath: "/tmp/out.png"},
	}

	for _, input := range cases {
		p := &processorMock{}
		n := &notifierMock{}
		w := NewBlurWorker(p, n, true)

		res := w.DoWork(context.Background(), input)
		require.False(t, res.Succeeded())
		require.ErrorIs(t, res.Err, model.ErrMissingInput)
		require.Nil(t, res.Output)
		require.Zero(t, p.calls, "processor must not be touched")
		require.Zero(t, n.calls)
	}
}

func TestDoWorkProcessorFailure(t *testing.T) {
	p := &processorMock{err: model.ErrDecode}
	n := &notifierMock{}

	res := NewBlurWorker(p, n, false).DoWork(context.Background(), map[string]string{
		model.KeyImagePath:  "/in.png",
		model.KeyOutputPath: "/out.png",
	})

	require.ErrorIs(t, res.Err, model.ErrDecode)
	require.Equal(t, "decode", model.FailureKind(res.Err))
	require.Zero(t, n.calls)
}

func TestDoWorkRecoversPanic(t *testing.T) {
	p := &processorMock{panic: true}

	res := NewBlurWorker(p, nil, false).DoWork(context.Background(), map[string]string{
		model.KeyImagePath:  "/in.png",
		model.KeyOutputPath: "/out.png",
	})

	require.False(t, res.Succeeded())
	require.Equal(t, "unknown", model.FailureKind(res.Err))
}

func TestDoWorkPanicRemovesPartialOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "blurred_image.png")
	p := &processorMock{panic: true, partial: []byte("\x89PNG")}
	n := &notifierMock{}

	res := NewBlurWorker(p, n, false).DoWork(context.Background(), map[string]string{
		model.KeyImagePath:  "/in.png",
		model.KeyOutputPath: output,
	})

	require.False(t, res.Succeeded())
	require.NoFileExists(t, output)
	require.Zero(t, n.calls)
}

func TestDoWorkNotifierPanicKeepsSuccess(t *testing.T) {
	n := &notifierMock{panic: true}

	res := NewBlurWorker(&processorMock{img: image.NewNRGBA(image.Rect(0, 0, 2, 2))}, n, false).
		DoWork(context.Background(), map[string]string{
			model.KeyImagePath:  "/in.png",
			model.KeyOutputPath: "/out.png",
		})

	require.True(t, res.Succeeded())
	require.Equal(t, "/out.png", res.Output[model.KeyBlurredImagePath])
	require.Equal(t, 1, n.calls)
}

func TestDoWorkAttachImage(t *testing.T) {
	blurred := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	input := map[string]string{
		model.KeyImagePath:  "/in.png",
		model.KeyOutputPath: "/out.png",
	}

	n := &notifierMock{}
	res := NewBlurWorker(&processorMock{img: blurred}, n, true).DoWork(context.Background(), input)
	require.True(t, res.Succeeded())
	require.Equal(t, 1, n.calls)
	require.Equal(t, "/out.png", n.path)
	require.Same(t, blurred, n.img)

	n = &notifierMock{}
	res = NewBlurWorker(&processorMock{img: blurred}, n, false).DoWork(context.Background(), input)
	require.True(t, res.Succeeded())
	require.Equal(t, 1, n.calls)
	require.Nil(t, n.img)
}

func TestDoWorkEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "selected_image.png")
	output := filepath.Join(dir, "blurred_image.png")
	require.NoError(t, imaging.Save(imaging.New(1000, 1000, image.White), input))

	n := &notifierMock{}
	w := NewBlurWorker(imgproc.New(imgproc.DefaultFactor), n, false)

	res := w.DoWork(context.Background(), map[string]string{
		model.KeyImagePath:  input,
		model.KeyOutputPath: output,
	})
	require.NoError(t, res.Err)
	require.Equal(t, output, res.Output[model.KeyBlurredImagePath])

	out, err := imaging.Open(output)
	require.NoError(t, err)
	require.Equal(t, 1000, out.Bounds().Dx())
	require.Equal(t, 1000, out.Bounds().Dy())
}

func TestDoWorkUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "selected_image.png")
	require.NoError(t, imaging.Save(imaging.New(20, 20, image.Black), input))
	output := filepath.Join(dir, "missing", "blurred_image.png")

	res := NewBlurWorker(imgproc.New(imgproc.DefaultFactor), nil, false).DoWork(context.Background(), map[string]string{
		model.KeyImagePath:  input,
		model.KeyOutputPath: output,
	})
	require.ErrorIs(t, res.Err, model.ErrIO)

	_, err := os.Stat(output)
	require.True(t, os.IsNotExist(err))
}
