// easing.go implements the named easing curve registry.

package tween

import (
	"context"
	"math"

	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/xsync"
)

// Func maps a normalized progress value t ∈ [0,1] to an eased progress
// value. A curve must return exactly 1 at t == 1.
type Func func(t float64) float64

// Registry resolves easing curve names. It is an explicit value so that
// components can be constructed with their own curve set instead of
// sharing process-wide state.
type Registry struct {
	locker xsync.Mutex
	curves map[string]Func
}

// NewRegistry returns a registry pre-populated with the default curve
// set. "linear" is always present.
func NewRegistry() *Registry {
	r := &Registry{
		curves: map[string]Func{},
	}
	for name, f := range map[string]Func{
		"linear":         Linear,
		"easeinsine":     EaseInSine,
		"easeoutsine":    EaseOutSine,
		"easeinoutsine":  EaseInOutSine,
		"easeinquad":     EaseInQuad,
		"easeoutquad":    EaseOutQuad,
		"easeinoutquad":  EaseInOutQuad,
		"easeincubic":    EaseInCubic,
		"easeoutcubic":   EaseOutCubic,
		"easeinoutcubic": EaseInOutCubic,
	} {
		r.curves[name] = f
	}
	return r
}

func (r *Registry) Register(ctx context.Context, name string, f Func) {
	r.locker.Do(ctx, func() {
		r.curves[name] = f
	})
}

// Get resolves a curve by name. An unknown name falls back to linear
// with a logged warning.
func (r *Registry) Get(ctx context.Context, name string) Func {
	return xsync.DoR1(ctx, &r.locker, func() Func {
		f := r.curves[name]
		if f == nil {
			logger.Warnf(ctx, "unknown easing curve '%s', falling back to linear", name)
			return Linear
		}
		return f
	})
}

func Linear(t float64) float64 {
	return t
}

func EaseInSine(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return 1 - math.Cos(t*math.Pi/2)
}

func EaseOutSine(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return math.Sin(t * math.Pi / 2)
}

func EaseInOutSine(t float64) float64 {
	if t >= 1 {
		return 1
	}
	return -(math.Cos(math.Pi*t) - 1) / 2
}

func EaseInQuad(t float64) float64 {
	return t * t
}

func EaseOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

func EaseInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

func EaseInCubic(t float64) float64 {
	return t * t * t
}

func EaseOutCubic(t float64) float64 {
	u := 1 - t
	return 1 - u*u*u
}

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := 1 - t
	return 1 - 4*u*u*u
}
