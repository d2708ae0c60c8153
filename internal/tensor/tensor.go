// Package tensor defines the dense float32 buffer passed between the
// preprocessor and the inference engine.
package tensor

import "fmt"

// Shape lists tensor dimensions, outermost first.
type Shape []int64

// Size is the number of elements a tensor of this shape holds.
func (s Shape) Size() int64 {
	if len(s) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether both shapes have the same rank and dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	return fmt.Sprint([]int64(s))
}

// Tensor is a row-major float32 buffer with its shape.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// New allocates a zeroed tensor.
func New(shape Shape) Tensor {
	return Tensor{Shape: append(Shape(nil), shape...), Data: make([]float32, shape.Size())}
}

// Valid reports whether Data matches the declared shape.
func (t Tensor) Valid() bool {
	return int64(len(t.Data)) == t.Shape.Size()
}
