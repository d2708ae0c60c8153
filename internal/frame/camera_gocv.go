//go:build gocv

package frame

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// CameraAvailable reports whether this binary was built with webcam support.
const CameraAvailable = true

// CameraSource reads frames from a local webcam through OpenCV.
type CameraSource struct {
	device int
	logger *zap.Logger

	mu      sync.Mutex
	cam     *gocv.VideoCapture
	reading atomic.Bool
	seq     atomic.Uint64
}

// NewCameraSource returns a source for the given device index.
func NewCameraSource(device int, logger *zap.Logger) (Source, error) {
	return &CameraSource{device: device, logger: logger.Named("camera_source")}, nil
}

func (s *CameraSource) Setup(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	cam, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		return fmt.Errorf("%w: open device %d: %v", ErrDeviceUnavailable, s.device, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return fmt.Errorf("%w: device %d not opened", ErrDeviceUnavailable, s.device)
	}
	s.mu.Lock()
	s.cam = cam
	s.mu.Unlock()
	s.logger.Info("camera opened", zap.Int("device", s.device))
	return nil
}

type readResult struct {
	img image.Image
	err error
}

// Capture grabs one frame. A read still pending from an earlier timed-out
// call makes Capture fail fast instead of stacking reads on the device.
func (s *CameraSource) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	cam := s.cam
	s.mu.Unlock()
	if cam == nil {
		return Frame{}, fmt.Errorf("%w: camera not set up", ErrNoFrameAvailable)
	}
	if !s.reading.CompareAndSwap(false, true) {
		return Frame{}, fmt.Errorf("%w: previous read still pending", ErrNoFrameAvailable)
	}

	done := make(chan readResult, 1)
	go func() {
		defer s.reading.Store(false)
		mat := gocv.NewMat()
		defer mat.Close()
		if ok := cam.Read(&mat); !ok || mat.Empty() {
			done <- readResult{err: ErrNoFrameAvailable}
			return
		}
		img, err := mat.ToImage()
		if err != nil {
			done <- readResult{err: fmt.Errorf("%w: convert mat: %v", ErrNoFrameAvailable, err)}
			return
		}
		done <- readResult{img: img}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Frame{}, res.err
		}
		return Frame{Image: res.img, CapturedAt: time.Now(), Seq: s.seq.Add(1)}, nil
	case <-ctx.Done():
		return Frame{}, fmt.Errorf("%w: %v", ErrNoFrameAvailable, ctx.Err())
	}
}

func (s *CameraSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cam == nil {
		return nil
	}
	err := s.cam.Close()
	s.cam = nil
	return err
}
