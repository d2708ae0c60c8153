// Package loop runs the capture → preprocess → infer → present cycle.
//
// A Controller owns the frame source and the loaded model. Cycles are
// single-flight: a trigger that arrives while a cycle is running is dropped,
// never queued.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/chart"
	"github.com/Brownie44l1/charcam/internal/display"
	"github.com/Brownie44l1/charcam/internal/frame"
	"github.com/Brownie44l1/charcam/internal/labels"
	"github.com/Brownie44l1/charcam/internal/logging"
	"github.com/Brownie44l1/charcam/internal/model"
	"github.com/Brownie44l1/charcam/internal/tensor"
)

// ErrNotReady is returned by triggers before a successful Start or after a
// fatal startup failure.
var ErrNotReady = errors.New("classifier not ready")

// Model is the loaded classifier as seen by the loop.
type Model interface {
	Predict(t tensor.Tensor) ([]float32, error)
	Close() error
}

// Loader loads a model once at startup.
type Loader interface {
	Load(ctx context.Context, location string) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, location string) (Model, error)

func (f LoaderFunc) Load(ctx context.Context, location string) (Model, error) {
	return f(ctx, location)
}

// Transformer turns a frame into model input of a fixed shape.
type Transformer interface {
	Transform(f frame.Frame) (tensor.Tensor, error)
	Shape() tensor.Shape
}

// Result is the outcome of one successful cycle.
type Result struct {
	CycleID     string        `json:"cycle_id"`
	ClassID     int           `json:"class_id"`
	Label       string        `json:"label"`
	Confidences []float32     `json:"confidences"`
	CapturedAt  time.Time     `json:"captured_at"`
	Duration    time.Duration `json:"duration"`
}

// Config wires a Controller.
type Config struct {
	Source        frame.Source
	Preprocessor  Transformer
	Loader        Loader
	ModelLocation string
	Visualizer    chart.Visualizer
	Display       display.Display
	// CaptureTimeout bounds a single Capture call.
	CaptureTimeout time.Duration
	Logger         *zap.Logger
	// Observer, when set, is called synchronously on every state change.
	Observer func(from, to State)
}

// Controller is the explicit owner of the loop state.
type Controller struct {
	source         frame.Source
	pre            Transformer
	loader         Loader
	location       string
	visualizer     chart.Visualizer
	display        display.Display
	captureTimeout time.Duration
	logger         *zap.Logger
	observer       func(from, to State)

	startMu sync.Mutex
	started bool

	// model and fatal are written before the state leaves Uninitialized and
	// read only after observing that state change.
	model Model
	fatal error

	state     atomic.Int32
	accepted  atomic.Uint64
	dropped   atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	entered   [numStates]atomic.Uint64

	lastMu sync.RWMutex
	last   *Result
}

// New builds a controller in the Uninitialized state.
func New(cfg Config) *Controller {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 2 * time.Second
	}
	if cfg.Display == nil {
		cfg.Display = display.Fanout(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{
		source:         cfg.Source,
		pre:            cfg.Preprocessor,
		loader:         cfg.Loader,
		location:       cfg.ModelLocation,
		visualizer:     cfg.Visualizer,
		display:        cfg.Display,
		captureTimeout: cfg.CaptureTimeout,
		logger:         cfg.Logger.Named("loop"),
		observer:       cfg.Observer,
	}
}

// Start sets up the frame source, loads the model and runs one warm-up
// inference on a blank input. Any failure is fatal: the controller moves to
// Failed, keeps the error and never retries.
func (c *Controller) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return errors.New("controller already started")
	}
	c.started = true

	logger := logging.WithOperation(c.logger, "loop.start", "")

	if err := c.source.Setup(ctx); err != nil {
		if !errors.Is(err, frame.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", frame.ErrDeviceUnavailable, err)
		}
		return c.startFailed(logger, logging.NewOperationError("frame.setup", "", err))
	}

	m, err := c.loader.Load(ctx, c.location)
	if err != nil {
		if !errors.Is(err, model.ErrModelLoad) {
			err = fmt.Errorf("%w: %v", model.ErrModelLoad, err)
		}
		if cerr := c.source.Close(); cerr != nil {
			logger.Warn("failed to close frame source", zap.Error(cerr))
		}
		return c.startFailed(logger, logging.NewOperationError("model.load", "", err))
	}

	if err := c.warmUp(m); err != nil {
		if cerr := m.Close(); cerr != nil {
			logger.Warn("failed to close model", zap.Error(cerr))
		}
		if cerr := c.source.Close(); cerr != nil {
			logger.Warn("failed to close frame source", zap.Error(cerr))
		}
		return c.startFailed(logger, logging.NewOperationError("model.warmup", "", err))
	}

	c.model = m
	c.transition(Idle)
	logger.Info("classifier ready", zap.String("model", c.location))
	return nil
}

func (c *Controller) warmUp(m Model) error {
	out, err := m.Predict(tensor.New(c.pre.Shape()))
	if err != nil {
		return fmt.Errorf("%w: warm-up inference: %w", model.ErrModelLoad, err)
	}
	if len(out) != labels.Len {
		return fmt.Errorf("%w: warm-up returned %d values, expected %d", model.ErrModelLoad, len(out), labels.Len)
	}
	return nil
}

func (c *Controller) startFailed(logger *zap.Logger, err error) error {
	c.fatal = err
	c.transition(Failed)
	logger.Error("startup failed, classifier unusable until restart", zap.Error(err))
	c.display.ShowError(err)
	return err
}

// Trigger runs one cycle on a freshly captured frame. accepted is false when
// a cycle was already running; the trigger is then dropped without error.
func (c *Controller) Trigger(ctx context.Context) (res *Result, accepted bool, err error) {
	return c.run(ctx, c.source.Capture)
}

// TriggerFrame runs one cycle on a caller-supplied frame under the same
// single-flight gate.
func (c *Controller) TriggerFrame(ctx context.Context, f frame.Frame) (res *Result, accepted bool, err error) {
	return c.run(ctx, func(context.Context) (frame.Frame, error) { return f, nil })
}

type captureFunc func(ctx context.Context) (frame.Frame, error)

func (c *Controller) run(ctx context.Context, capture captureFunc) (*Result, bool, error) {
	switch c.State() {
	case Uninitialized:
		return nil, false, ErrNotReady
	case Failed:
		return nil, false, fmt.Errorf("%w: %w", ErrNotReady, c.fatal)
	}

	if !c.state.CompareAndSwap(int32(Idle), int32(Capturing)) {
		c.dropped.Add(1)
		c.logger.Debug("trigger dropped, cycle in flight", zap.Stringer("state", c.State()))
		return nil, false, nil
	}
	c.entered[Capturing].Add(1)
	c.notify(Idle, Capturing)
	c.accepted.Add(1)

	defer c.transition(Idle)

	res, err := c.cycle(ctx, capture)
	if err != nil {
		c.failed.Add(1)
		return nil, true, err
	}
	c.succeeded.Add(1)
	c.lastMu.Lock()
	c.last = res
	c.lastMu.Unlock()
	return res, true, nil
}

func (c *Controller) cycle(ctx context.Context, capture captureFunc) (*Result, error) {
	cycleID := uuid.NewString()
	logger := logging.WithOperation(c.logger, "loop.cycle", cycleID)
	started := time.Now()

	captureCtx, cancel := context.WithTimeout(ctx, c.captureTimeout)
	f, err := capture(captureCtx)
	cancel()
	if err != nil {
		return nil, c.cycleFailed(logger, "frame.capture", cycleID, err)
	}

	c.transition(Predicting)
	input, err := c.pre.Transform(f)
	if err != nil {
		return nil, c.cycleFailed(logger, "preprocess.transform", cycleID, err)
	}
	confidences, err := c.model.Predict(input)
	if err != nil {
		return nil, c.cycleFailed(logger, "model.predict", cycleID, err)
	}

	c.transition(Presenting)
	classID := model.ArgMax(confidences)
	label, err := labels.Resolve(classID)
	if err != nil {
		return nil, c.cycleFailed(logger, "labels.resolve", cycleID, err)
	}
	if err := c.visualizer.Render(confidences); err != nil {
		return nil, c.cycleFailed(logger, "chart.render", cycleID, err)
	}
	c.display.ShowLabel(label)

	res := &Result{
		CycleID:     cycleID,
		ClassID:     classID,
		Label:       label,
		Confidences: confidences,
		CapturedAt:  f.CapturedAt,
		Duration:    time.Since(started),
	}
	logger.Info("cycle complete",
		zap.Int("class_id", classID),
		zap.String("label", label),
		zap.Float32("confidence", confidences[classID]),
		zap.Duration("took", res.Duration),
	)
	return res, nil
}

func (c *Controller) cycleFailed(logger *zap.Logger, operation, cycleID string, err error) error {
	wrapped := logging.NewOperationError(operation, cycleID, err)
	logger.Warn("cycle failed", zap.Stringer("state", c.State()), zap.Error(wrapped))
	c.display.ShowError(wrapped)
	return wrapped
}

func (c *Controller) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	c.entered[to].Add(1)
	c.notify(from, to)
}

func (c *Controller) notify(from, to State) {
	if c.observer != nil {
		c.observer(from, to)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Ready reports whether the controller accepts triggers.
func (c *Controller) Ready() bool {
	s := c.State()
	return s != Uninitialized && s != Failed
}

// Fatal returns the startup error, if any.
func (c *Controller) Fatal() error {
	if c.State() != Failed {
		return nil
	}
	return c.fatal
}

// Last returns the most recent successful result, or nil.
func (c *Controller) Last() *Result {
	c.lastMu.RLock()
	defer c.lastMu.RUnlock()
	return c.last
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	entered := make(map[string]uint64, numStates)
	for s := Uninitialized; s < numStates; s++ {
		entered[s.String()] = c.entered[s].Load()
	}
	return Stats{
		State:     c.State().String(),
		Accepted:  c.accepted.Load(),
		Dropped:   c.dropped.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Entered:   entered,
	}
}

// Close releases the model and the frame source.
func (c *Controller) Close() error {
	var errs []error
	if c.Ready() && c.model != nil {
		errs = append(errs, c.model.Close())
	}
	if c.State() != Failed {
		errs = append(errs, c.source.Close())
	}
	return errors.Join(errs...)
}
