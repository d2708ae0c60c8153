package model

import (
	"fmt"

	"github.com/Brownie44l1/charcam/internal/tensor"
)

// Metadata is the model descriptor stored next to the weights
// (model_metadata.json).
type Metadata struct {
	ModelFile   string   `json:"model_file"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

func (m *Metadata) applyDefaults() {
	if m.ModelFile == "" {
		m.ModelFile = "model.onnx"
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
}

// validate checks the declared shapes against what the loop feeds and expects.
// A class list, when present, must match classes entry for entry: output i
// is reported under classes[i].
func (m Metadata) validate(input tensor.Shape, classes []string) error {
	if !tensor.Shape(m.InputShape).Equal(input) {
		return fmt.Errorf("declared input shape %v, expected %v", m.InputShape, input)
	}
	if m.ImageSize != 0 && (len(input) < 2 || int64(m.ImageSize) != input[len(input)-1] || int64(m.ImageSize) != input[len(input)-2]) {
		return fmt.Errorf("declared image_size %d does not match input shape %v", m.ImageSize, input)
	}
	if got := tensor.Shape(m.OutputShape).Size(); got != int64(len(classes)) {
		return fmt.Errorf("declared output shape %v has %d values, expected %d", m.OutputShape, got, len(classes))
	}
	if len(m.Classes) == 0 {
		return nil
	}
	if len(m.Classes) != len(classes) {
		return fmt.Errorf("descriptor lists %d classes, expected %d", len(m.Classes), len(classes))
	}
	for i, c := range m.Classes {
		if c != classes[i] {
			return fmt.Errorf("descriptor class %d is %q, expected %q", i, c, classes[i])
		}
	}
	return nil
}
