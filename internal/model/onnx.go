package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXBackend runs models with onnxruntime. The runtime environment is
// process-wide and initialised on first Open.
type ONNXBackend struct {
	libraryPath string

	once    sync.Once
	initErr error
	owned   bool
}

// NewONNXBackend returns a backend using the shared library at libraryPath,
// or the platform default when empty.
func NewONNXBackend(libraryPath string) *ONNXBackend {
	return &ONNXBackend{libraryPath: libraryPath}
}

func (b *ONNXBackend) init() error {
	b.once.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if b.libraryPath != "" {
			ort.SetSharedLibraryPath(b.libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			b.initErr = fmt.Errorf("failed to initialize ONNX environment: %w", err)
			return
		}
		b.owned = true
	})
	return b.initErr
}

// Open creates a session from in-memory ONNX weights.
func (b *ONNXBackend) Open(weights []byte, meta Metadata) (Session, error) {
	if err := b.init(); err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSessionWithONNXData(weights,
		[]string{meta.InputName}, []string{meta.OutputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &onnxSession{
		session:     session,
		inputShape:  ort.NewShape(meta.InputShape...),
		outputShape: ort.NewShape(meta.OutputShape...),
	}, nil
}

// Close tears down the runtime environment if this backend created it.
func (b *ONNXBackend) Close() error {
	if !b.owned {
		return nil
	}
	b.owned = false
	return ort.DestroyEnvironment()
}

type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	inputShape  ort.Shape
	outputShape ort.Shape
}

func (s *onnxSession) Run(scope *Scope, input []float32) ([]float32, error) {
	inputTensor, err := ort.NewTensor(s.inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	if err := scope.Track(inputTensor); err != nil {
		return nil, err
	}

	outputTensor, err := ort.NewEmptyTensor[float32](s.outputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	if err := scope.Track(outputTensor); err != nil {
		return nil, err
	}

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, err
	}

	// The output tensor is released with the scope, copy before returning.
	out := make([]float32, len(outputTensor.GetData()))
	copy(out, outputTensor.GetData())
	return out, nil
}

func (s *onnxSession) Destroy() error {
	return s.session.Destroy()
}
