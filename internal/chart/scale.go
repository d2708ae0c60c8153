package chart

import "math"

// linearScale maps [d0, d1] onto [r0, r1] and rounds to whole pixels.
type linearScale struct {
	d0, d1 float64
	r0, r1 float64
}

func (s linearScale) scale(v float64) int {
	if s.d1 == s.d0 {
		return int(math.Round(s.r0))
	}
	t := (v - s.d0) / (s.d1 - s.d0)
	return int(math.Round(s.r0 + t*(s.r1-s.r0)))
}

// bandScale splits [r0, r1] into equal integer bands, one per domain entry,
// centring the leftover pixels.
type bandScale struct {
	start int
	step  int
}

func newBandScale(n int, r0, r1 int) bandScale {
	if n <= 0 {
		return bandScale{start: r0}
	}
	span := float64(r1 - r0)
	step := math.Floor(span / float64(n))
	start := math.Round(float64(r0) + (span-step*float64(n))*0.5)
	return bandScale{start: int(start), step: int(step)}
}

func (b bandScale) position(i int) int {
	return b.start + i*b.step
}

// easeCubicInOut is the default easing of the bar transition.
func easeCubicInOut(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}
	t *= 2
	if t <= 1 {
		return t * t * t / 2
	}
	t -= 2
	return (t*t*t + 2) / 2
}
