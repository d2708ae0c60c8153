// Package chart renders confidence vectors as an animated horizontal bar chart.
package chart

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrDimensionMismatch is returned when the vector length differs from the
// number of labels. Nothing is drawn in that case.
var ErrDimensionMismatch = errors.New("confidence vector length mismatch")

// Visualizer draws a confidence vector. Implementations must replace their
// previous state completely on every call.
type Visualizer interface {
	Render(confidences []float32) error
}

const (
	DefaultWidth      = 300
	DefaultHeight     = 200
	DefaultTransition = 500 * time.Millisecond

	barHeight  = 15
	axisLeft   = 80
	axisTop    = 20
	rightSlack = 50
	barColor   = "#6fbadd"
)

// Bar is one rendered bar. Width is the end state, From the width the
// transition starts at.
type Bar struct {
	Label  string  `json:"label"`
	Value  float32 `json:"value"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Height int     `json:"height"`
	From   int     `json:"from"`
	Width  int     `json:"width"`
}

// Snapshot is an immutable copy of the chart state.
type Snapshot struct {
	Bars       []Bar         `json:"bars"`
	DomainMax  float64       `json:"domain_max"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Transition time.Duration `json:"transition"`
	RenderedAt time.Time     `json:"rendered_at"`
	Version    uint64        `json:"version"`
}

// At returns the bars as they look at progress (0..1) through the transition.
func (s Snapshot) At(progress float64) []Bar {
	k := easeCubicInOut(progress)
	out := make([]Bar, len(s.Bars))
	for i, b := range s.Bars {
		b.Width = int(math.Round(float64(b.From) + float64(b.Width-b.From)*k))
		out[i] = b
	}
	return out
}

// Longest returns the index of the widest bar at the end of the transition.
func (s Snapshot) Longest() int {
	idx := -1
	best := -1
	for i, b := range s.Bars {
		if b.Width > best {
			best = b.Width
			idx = i
		}
	}
	return idx
}

// BarChart keeps one bar per label, in label order.
type BarChart struct {
	labels     []string
	width      int
	height     int
	transition time.Duration
	now        func() time.Time

	mu         sync.RWMutex
	bars       []Bar
	domainMax  float64
	renderedAt time.Time
	version    uint64
}

// Option customises a BarChart.
type Option func(*BarChart)

// WithSize sets the plot width and height in pixels.
func WithSize(width, height int) Option {
	return func(c *BarChart) {
		if width > 0 {
			c.width = width
		}
		if height > 0 {
			c.height = height
		}
	}
}

// WithTransition sets the animation duration.
func WithTransition(d time.Duration) Option {
	return func(c *BarChart) {
		if d >= 0 {
			c.transition = d
		}
	}
}

// NewBarChart creates a chart whose bars start at zero width.
func NewBarChart(labels []string, opts ...Option) *BarChart {
	c := &BarChart{
		labels:     append([]string(nil), labels...),
		width:      DefaultWidth,
		height:     DefaultHeight,
		transition: DefaultTransition,
		now:        time.Now,
		domainMax:  1,
	}
	for _, opt := range opts {
		opt(c)
	}

	band := newBandScale(len(c.labels), axisTop, c.height)
	c.bars = make([]Bar, len(c.labels))
	for i, l := range c.labels {
		c.bars[i] = Bar{Label: l, X: axisLeft, Y: band.position(i), Height: barHeight}
	}
	return c
}

// Render replaces the chart state with confidences. Bar i belongs to label i
// regardless of the values; lengths follow a linear scale from
// [0, max(1, max value)] to the plot width.
func (c *BarChart) Render(confidences []float32) error {
	if len(confidences) != len(c.labels) {
		return fmt.Errorf("%w: got %d values for %d labels", ErrDimensionMismatch, len(confidences), len(c.labels))
	}

	domainMax := 1.0
	for _, v := range confidences {
		if f := float64(v); f > domainMax && !math.IsInf(f, 1) {
			domainMax = f
		}
	}
	x := linearScale{d0: 0, d1: domainMax, r0: axisLeft, r1: float64(c.width + rightSlack)}
	origin := x.scale(0)

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Bar, len(c.bars))
	for i, prev := range c.bars {
		v := float64(confidences[i])
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		if v > domainMax {
			v = domainMax
		}
		next[i] = Bar{
			Label:  prev.Label,
			Value:  confidences[i],
			X:      origin,
			Y:      prev.Y,
			Height: prev.Height,
			From:   prev.Width,
			Width:  x.scale(v) - origin,
		}
	}
	c.bars = next
	c.domainMax = domainMax
	c.renderedAt = c.now()
	c.version++
	return nil
}

// Snapshot returns a copy of the current state.
func (c *BarChart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Bars:       append([]Bar(nil), c.bars...),
		DomainMax:  c.domainMax,
		Width:      c.width,
		Height:     c.height,
		Transition: c.transition,
		RenderedAt: c.renderedAt,
		Version:    c.version,
	}
}
