// Package display holds the write-only "current label" sinks.
package display

import (
	"sync"
	"time"
)

// Display receives the text shown for the latest cycle.
type Display interface {
	ShowLabel(label string)
	ShowError(err error)
}

// State is what a Board currently shows.
type State struct {
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Board keeps the current text in memory for the HTTP surface.
type Board struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

func (b *Board) ShowLabel(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = State{Text: label, UpdatedAt: b.now()}
}

// ShowError keeps the last label and records the failure next to it.
func (b *Board) ShowError(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Error = err.Error()
	b.state.UpdatedAt = b.now()
}

// State returns a copy of what the board shows.
func (b *Board) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Fanout forwards to every display in order.
type Fanout []Display

func (f Fanout) ShowLabel(label string) {
	for _, d := range f {
		d.ShowLabel(label)
	}
}

func (f Fanout) ShowError(err error) {
	for _, d := range f {
		d.ShowError(err)
	}
}
