package tensor

import "testing"

func TestShapeSize(t *testing.T) {
	cases := []struct {
		shape Shape
		want  int64
	}{
		{Shape{1, 1, 28, 28}, 784},
		{Shape{1, 7}, 7},
		{Shape{}, 0},
		{Shape{3, 0}, 0},
	}
	for _, c := range cases {
		if got := c.shape.Size(); got != c.want {
			t.Fatalf("%v: expected %d got %d", c.shape, c.want, got)
		}
	}
}

func TestShapeEqual(t *testing.T) {
	if !(Shape{1, 1, 28, 28}).Equal(Shape{1, 1, 28, 28}) {
		t.Fatal("identical shapes should be equal")
	}
	if (Shape{1, 784}).Equal(Shape{1, 1, 28, 28}) {
		t.Fatal("different ranks must not be equal")
	}
	if (Shape{1, 1, 28, 27}).Equal(Shape{1, 1, 28, 28}) {
		t.Fatal("different dims must not be equal")
	}
}

func TestNewIsValid(t *testing.T) {
	shape := Shape{1, 1, 28, 28}
	tt := New(shape)
	if !tt.Valid() {
		t.Fatal("freshly allocated tensor should be valid")
	}
	shape[3] = 1
	if tt.Shape[3] != 28 {
		t.Fatal("New must copy the shape")
	}
}
