// Package tween implements time-bounded interpolation of transform
// values under named easing curves.
package tween

import (
	"context"
)

// Interpolatable is a value that can produce an intermediate value
// between itself and another value of the same type.
type Interpolatable[T any] interface {
	Interpolate(dest T, t float64) T
}

const epsilon = 0.000001

// Track interpolates from a source value towards a destination value
// over an integer amount of ticks. A Track is not safe for concurrent
// use; each one is owned by exactly one executor.
type Track[T Interpolatable[T]] struct {
	source   T
	dest     T
	duration int
	elapsed  int
	ease     Func
}

// New creates a Track with an already-resolved easing function.
func New[T Interpolatable[T]](source, dest T, duration int, ease Func) *Track[T] {
	if duration < 0 {
		duration = 0
	}
	if ease == nil {
		ease = Linear
	}
	return &Track[T]{
		source:   source,
		dest:     dest,
		duration: duration,
		ease:     ease,
	}
}

// NewNamed creates a Track resolving the easing curve by name through
// the given registry (unknown names fall back to linear).
func NewNamed[T Interpolatable[T]](
	ctx context.Context,
	reg *Registry,
	source, dest T,
	duration int,
	curveName string,
) *Track[T] {
	return New(source, dest, duration, reg.Get(ctx, curveName))
}

// NewResting creates a track that rests at the given value: source and
// dest are equal and the duration is zero.
func NewResting[T Interpolatable[T]](value T) *Track[T] {
	return New(value, value, 0, Linear)
}

// Fetch returns the current interpolated value without advancing time.
// It is pure: consecutive calls return equal values.
func (tr *Track[T]) Fetch() T {
	if tr.elapsed >= tr.duration {
		// This also covers duration == 0, which reads as dest
		// immediately.
		return tr.dest
	}
	t := tr.ease(float64(tr.elapsed) / (float64(tr.duration) + epsilon))
	return tr.source.Interpolate(tr.dest, t)
}

// Advance moves time forward by n ticks (saturating at the duration)
// and returns the new Fetch value.
func (tr *Track[T]) Advance(n int) T {
	if n < 0 {
		n = 0
	}
	tr.elapsed = min(tr.elapsed+n, tr.duration)
	return tr.Fetch()
}

func (tr *Track[T]) Duration() int {
	return tr.duration
}

func (tr *Track[T]) Elapsed() int {
	return tr.elapsed
}
