// Package frame provides camera frames to the classification loop.
//
// A Source is set up once and then polled for its most recent frame. Sources
// are not safe for concurrent Capture calls; the loop controller guarantees a
// single caller.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
)

var (
	// ErrDeviceUnavailable is returned by Setup when the device cannot be acquired.
	ErrDeviceUnavailable = errors.New("frame source unavailable")
	// ErrNoFrameAvailable is returned by Capture when there is nothing to read.
	ErrNoFrameAvailable = errors.New("no frame available")
)

// Frame is one captured image. Image MUST NOT be modified after capture.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
	// Seq increases by one per successful capture of a given source.
	Seq uint64
}

// Width of the frame in pixels (0 for an empty frame).
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height of the frame in pixels (0 for an empty frame).
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Source is the camera abstraction used by the loop controller.
type Source interface {
	// Setup acquires the device. It must succeed before Capture is called.
	Setup(ctx context.Context) error
	// Capture returns the most recent frame without blocking past ctx.
	Capture(ctx context.Context) (Frame, error)
	// Close releases the device. Safe to call more than once.
	Close() error
}

// MaxDimension bounds each side of a frame built from raw pixels.
const MaxDimension = 1 << 14

// FromPixels builds a frame from a height × width × channels byte buffer.
// Supported channel counts: 1 (gray), 3 (RGB), 4 (RGBA).
func FromPixels(height, width, channels int, pix []byte) (Frame, error) {
	if height < 0 || width < 0 {
		return Frame{}, fmt.Errorf("negative frame dimensions %dx%d", width, height)
	}
	if height > MaxDimension || width > MaxDimension {
		return Frame{}, fmt.Errorf("frame %dx%d exceeds %d pixels per side", width, height, MaxDimension)
	}
	if channels < 1 || channels > 4 {
		return Frame{}, fmt.Errorf("unsupported channel count %d", channels)
	}
	if want := height * width * channels; len(pix) != want {
		return Frame{}, fmt.Errorf("pixel buffer has %d bytes, expected %d (%dx%dx%d)", len(pix), want, height, width, channels)
	}

	rect := image.Rect(0, 0, width, height)
	var img image.Image
	switch channels {
	case 1:
		g := image.NewGray(rect)
		copy(g.Pix, pix)
		img = g
	case 3:
		rgba := image.NewNRGBA(rect)
		for i := 0; i < width*height; i++ {
			rgba.Pix[i*4] = pix[i*3]
			rgba.Pix[i*4+1] = pix[i*3+1]
			rgba.Pix[i*4+2] = pix[i*3+2]
			rgba.Pix[i*4+3] = 0xff
		}
		img = rgba
	case 4:
		rgba := image.NewNRGBA(rect)
		copy(rgba.Pix, pix)
		img = rgba
	default:
		return Frame{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	return Frame{Image: img, CapturedAt: time.Now()}, nil
}

// Solid returns a width × height frame filled with c.
func Solid(width, height int, c color.Color) Frame {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	nc := color.NRGBAModel.Convert(c).(color.NRGBA)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = nc.R
		img.Pix[i+1] = nc.G
		img.Pix[i+2] = nc.B
		img.Pix[i+3] = nc.A
	}
	return Frame{Image: img, CapturedAt: time.Now()}
}
