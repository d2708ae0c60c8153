package frame

import (
	"context"
	"image"
	"sync/atomic"
	"time"
)

// StaticSource always yields the same image. It backs image uploads and tests.
type StaticSource struct {
	img image.Image
	seq atomic.Uint64
}

// NewStaticSource wraps img. A nil img makes every Capture fail with
// ErrNoFrameAvailable.
func NewStaticSource(img image.Image) *StaticSource {
	return &StaticSource{img: img}
}

func (s *StaticSource) Setup(ctx context.Context) error {
	return ctx.Err()
}

func (s *StaticSource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.img == nil {
		return Frame{}, ErrNoFrameAvailable
	}
	return Frame{Image: s.img, CapturedAt: time.Now(), Seq: s.seq.Add(1)}, nil
}

func (s *StaticSource) Close() error { return nil }
