package processor

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	"github.com/aliskhannn/photo-blur/internal/model"
)

// DefaultFactor is the per-dimension downscale factor of the blur.
const DefaultFactor = 10

// Processor blurs images by resampling them down and back up.
// No convolution kernel is involved: the smoothing filter applied twice
// over a 1/factor grid is what softens the picture.
type Processor struct {
	factor int
	filter imaging.ResampleFilter
}

// New creates a Processor with the given downscale factor.
// A factor below 2 falls back to DefaultFactor.
func New(factor int) *Processor {
	if factor < 2 {
		factor = DefaultFactor
	}

	return &Processor{
		factor: factor,
		filter: imaging.Linear,
	}
}

// Blur returns a blurred copy of src with the same dimensions.
func (p *Processor) Blur(src image.Image) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	// Never shrink to zero, otherwise imaging keeps the aspect ratio
	// of the other side or returns an empty image.
	sw := max(1, w/p.factor)
	sh := max(1, h/p.factor)

	small := imaging.Resize(src, sw, sh, p.filter)

	return imaging.Resize(small, w, h, p.filter)
}

// BlurFile decodes the image at inputPath, blurs it and writes it as PNG
// to outputPath. It returns the blurred image so callers can reuse it
// (e.g. for a notification preview).
//
// Errors wrap model.ErrIO, model.ErrDecode or model.ErrEncode. On failure
// no output file is left behind.
func (p *Processor) BlurFile(ctx context.Context, inputPath, outputPath string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Load the original image.
	src, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open input: %v", model.ErrIO, err)
	}
	defer src.Close()

	// Decode into an image object.
	img, err := imaging.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecode, err)
	}

	blurred := p.Blur(img)

	// Encode the result next to its final location.
	dst, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: create output: %v", model.ErrIO, err)
	}

	if err := imaging.Encode(dst, blurred, imaging.PNG); err != nil {
		_ = dst.Close()
		_ = os.Remove(outputPath)
		return nil, fmt.Errorf("%w: %v", model.ErrEncode, err)
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(outputPath)
		return nil, fmt.Errorf("%w: close output: %v", model.ErrIO, err)
	}

	return blurred, nil
}
