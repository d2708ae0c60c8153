// Package model loads the character classifier and runs inference.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/tensor"
)

var (
	// ErrModelLoad is returned when the descriptor or weights cannot be
	// fetched, parsed or opened.
	ErrModelLoad = errors.New("model load failed")
	// ErrShapeMismatch is returned when a tensor does not fit the model.
	ErrShapeMismatch = errors.New("tensor shape mismatch")
)

// maxArtifactSize bounds remote downloads.
const maxArtifactSize = 256 << 20

// Engine loads models from local paths, file:// or http(s):// locations.
type Engine struct {
	backend    Backend
	client     *http.Client
	logger     *zap.Logger
	inputShape tensor.Shape
	classes    []string
}

// Option customises an Engine.
type Option func(*Engine)

// WithHTTPClient sets the client used for remote locations.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// NewEngine returns an engine that accepts models with the given input shape
// and one output per class, in the order given.
func NewEngine(backend Backend, inputShape tensor.Shape, classes []string, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		backend:    backend,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger.Named("model_engine"),
		inputShape: inputShape,
		classes:    append([]string(nil), classes...),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches the descriptor at location, then the weights it references,
// and opens a session. It blocks until done or ctx is cancelled.
func (e *Engine) Load(ctx context.Context, location string) (*Model, error) {
	started := time.Now()
	e.logger.Info("loading model", zap.String("location", location))

	raw, err := e.fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: read descriptor: %v", ErrModelLoad, err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("%w: parse descriptor: %v", ErrModelLoad, err)
	}
	meta.applyDefaults()
	if err := meta.validate(e.inputShape, e.classes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	weightsLocation, err := resolveRelative(location, meta.ModelFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	weights, err := e.fetch(ctx, weightsLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: read weights: %v", ErrModelLoad, err)
	}

	session, err := e.backend.Open(weights, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	e.logger.Info("model loaded",
		zap.String("weights", weightsLocation),
		zap.Int("weights_bytes", len(weights)),
		zap.Int64s("input_shape", meta.InputShape),
		zap.Int64s("output_shape", meta.OutputShape),
		zap.Duration("took", time.Since(started)),
	)

	return &Model{
		Metadata:    meta,
		inputShape:  tensor.Shape(meta.InputShape),
		outputShape: tensor.Shape(meta.OutputShape),
		session:     session,
		logger:      e.logger,
	}, nil
}

func (e *Engine) fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path (a one-letter scheme is a Windows drive).
		return readLocal(ctx, location)
	}

	switch u.Scheme {
	case "file":
		return readLocal(ctx, u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", location, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxArtifactSize {
			return nil, fmt.Errorf("GET %s: artifact larger than %d bytes", location, maxArtifactSize)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

func readLocal(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// resolveRelative resolves ref against the directory of base.
func resolveRelative(base, ref string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		if filepath.IsAbs(ref) {
			return ref, nil
		}
		return filepath.Join(filepath.Dir(base), ref), nil
	}

	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("model_file %q: %v", ref, err)
	}
	if r.IsAbs() {
		return ref, nil
	}
	if u.Scheme == "file" {
		if path.IsAbs(r.Path) {
			return "file://" + r.Path, nil
		}
		return "file://" + path.Join(path.Dir(u.Path), r.Path), nil
	}
	return u.ResolveReference(r).String(), nil
}
