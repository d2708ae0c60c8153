// Package preprocess turns camera frames into model input tensors.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/Brownie44l1/charcam/internal/frame"
	"github.com/Brownie44l1/charcam/internal/tensor"
)

// ErrInvalidFrameShape is returned for frames without pixels.
var ErrInvalidFrameShape = errors.New("invalid frame shape")

// DefaultSize is the spatial input size of the character model.
const DefaultSize = 28

// Preprocessor converts frames to a (1, 1, size, size) luma tensor in [0, 1].
type Preprocessor struct {
	size int
}

// New returns a preprocessor for a square model input of the given size.
func New(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{size: size}
}

// Shape is the shape of every tensor Transform returns.
func (p *Preprocessor) Shape() tensor.Shape {
	return tensor.Shape{1, 1, int64(p.size), int64(p.size)}
}

// Transform reduces the frame to one luma channel, resamples it to
// size × size with bilinear interpolation and packs it row-major. The output
// shape never depends on the frame resolution.
func (p *Preprocessor) Transform(f frame.Frame) (tensor.Tensor, error) {
	if f.Image == nil || f.Width() == 0 || f.Height() == 0 {
		return tensor.Tensor{}, fmt.Errorf("%w: %dx%d", ErrInvalidFrameShape, f.Width(), f.Height())
	}

	out := tensor.New(p.Shape())
	resizeBilinear(Grayscale(f.Image), p.size, out.Data)
	return out, nil
}

// resizeBilinear samples output pixel (x, y) at source position
// (x·w/size, y·h/size) and blends only the 2×2 pixels around it. Neighbours
// past the last row or column are clamped to it.
func resizeBilinear(gray *image.NRGBA, size int, dst []float32) {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	scaleX := float64(w) / float64(size)
	scaleY := float64(h) / float64(size)

	// R == G == B after grayscale conversion.
	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4]) / 255
	}

	for dy := 0; dy < size; dy++ {
		fy := float64(dy) * scaleY
		y0 := int(fy)
		y1 := min(y0+1, h-1)
		ty := fy - float64(y0)
		for dx := 0; dx < size; dx++ {
			fx := float64(dx) * scaleX
			x0 := int(fx)
			x1 := min(x0+1, w-1)
			tx := fx - float64(x0)

			top := at(x0, y0) + (at(x1, y0)-at(x0, y0))*tx
			bottom := at(x0, y1) + (at(x1, y1)-at(x0, y1))*tx
			dst[dy*size+dx] = float32(top + (bottom-top)*ty)
		}
	}
}

// Grayscale is the explicit channel-reduction step (Rec. 601 luma). The
// result always starts at the origin.
func Grayscale(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}
