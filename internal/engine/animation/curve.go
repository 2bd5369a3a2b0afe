// Package animation samples keyframed transform curves and applies them to
// entities bound by name-derived target ids.
package animation

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrNonMonotonic   = errors.New("sample times must be strictly increasing")
	ErrEmptyCurve     = errors.New("curve has no samples")
	ErrSampleMismatch = errors.New("sample times and values differ in length")
)

// LerpFunc interpolates between a and b by t in [0, 1].
type LerpFunc[T any] func(a, b T, t float32) T

// UnevenCurve holds samples at arbitrary, strictly increasing times.
type UnevenCurve[T any] struct {
	times  []float32
	values []T
	lerp   LerpFunc[T]
}

// NewUnevenCurve validates and copies the samples. Times are never reordered.
func NewUnevenCurve[T any](times []float32, values []T, lerp LerpFunc[T]) (*UnevenCurve[T], error) {
	if len(times) == 0 {
		return nil, ErrEmptyCurve
	}
	if len(times) != len(values) {
		return nil, fmt.Errorf("%w: %d times, %d values", ErrSampleMismatch, len(times), len(values))
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return nil, fmt.Errorf("%w: t[%d]=%g after t[%d]=%g", ErrNonMonotonic, i, times[i], i-1, times[i-1])
		}
	}
	return &UnevenCurve[T]{
		times:  append([]float32(nil), times...),
		values: append([]T(nil), values...),
		lerp:   lerp,
	}, nil
}

// Len returns the number of samples.
func (c *UnevenCurve[T]) Len() int {
	return len(c.times)
}

// Domain returns the first and last sample times.
func (c *UnevenCurve[T]) Domain() (start, end float32) {
	return c.times[0], c.times[len(c.times)-1]
}

// Sample evaluates the curve at t, holding the end values outside the domain.
func (c *UnevenCurve[T]) Sample(t float32) T {
	n := len(c.times)
	if t <= c.times[0] || n == 1 {
		return c.values[0]
	}
	if t >= c.times[n-1] {
		return c.values[n-1]
	}

	// First sample strictly after t.
	next := sort.Search(n, func(i int) bool { return c.times[i] > t })
	prev := next - 1
	f := (t - c.times[prev]) / (c.times[next] - c.times[prev])
	return c.lerp(c.values[prev], c.values[next], f)
}
