//go:build !gocv

package frame

import (
	"errors"

	"go.uber.org/zap"
)

// CameraAvailable reports whether this binary was built with webcam support.
const CameraAvailable = false

// NewCameraSource fails: webcam capture needs OpenCV, build with -tags gocv.
func NewCameraSource(device int, logger *zap.Logger) (Source, error) {
	return nil, errors.New("webcam support not compiled in (build with -tags gocv)")
}
