package model

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/tensor"
)

// Model is a loaded classifier. It is immutable after Load and safe to share.
type Model struct {
	Metadata Metadata

	inputShape  tensor.Shape
	outputShape tensor.Shape
	session     Session
	logger      *zap.Logger
	closeOnce   sync.Once
}

// InputShape is the tensor shape Predict accepts.
func (m *Model) InputShape() tensor.Shape {
	return append(tensor.Shape(nil), m.inputShape...)
}

// Predict runs one inference and returns the per-class confidence vector.
// Scratch tensors are released before Predict returns on every path.
func (m *Model) Predict(t tensor.Tensor) ([]float32, error) {
	if !t.Shape.Equal(m.inputShape) {
		return nil, fmt.Errorf("%w: got %v, model expects %v", ErrShapeMismatch, t.Shape, m.inputShape)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(t.Data), t.Shape)
	}

	scope := &Scope{}
	defer func() {
		if err := scope.Release(); err != nil {
			m.logger.Warn("failed to release scratch tensors", zap.Error(err))
		}
	}()

	out, err := m.session.Run(scope, t.Data)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if want := m.outputShape.Size(); int64(len(out)) != want {
		return nil, fmt.Errorf("%w: model returned %d values, expected %d", ErrShapeMismatch, len(out), want)
	}
	return out, nil
}

// Close destroys the session.
func (m *Model) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.session.Destroy()
	})
	return err
}

// ArgMax returns the index of the largest value; ties go to the lowest index.
// It returns -1 for an empty vector.
func ArgMax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	maxIdx := 0
	maxVal := values[0]
	for i, v := range values {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx
}
