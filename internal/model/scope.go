package model

import "errors"

// Destroyer is any native resource with explicit release, such as an
// onnxruntime tensor.
type Destroyer interface {
	Destroy() error
}

// Scope collects scratch resources created during one Predict call and
// releases them together.
type Scope struct {
	items    []Destroyer
	released bool
}

// ErrScopeReleased is returned when tracking on a scope that was already
// released.
var ErrScopeReleased = errors.New("scope already released")

// Track registers d for release. Tracking on a released scope destroys d
// immediately and reports it together with any destroy error.
func (s *Scope) Track(d Destroyer) error {
	if d == nil {
		return nil
	}
	if s.released {
		return errors.Join(ErrScopeReleased, d.Destroy())
	}
	s.items = append(s.items, d)
	return nil
}

// Len is the number of resources still held.
func (s *Scope) Len() int { return len(s.items) }

// Release destroys tracked resources in reverse order. Subsequent calls are no-ops.
func (s *Scope) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		if err := s.items[i].Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	s.items = nil
	return errors.Join(errs...)
}
