// Package diagnostics provides a thread-safe graph of named runtime
// metrics (gauges, guides and event tags) for the playout components.
package diagnostics

import (
	"context"

	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// Color is the hint used by a rendering frontend when drawing a series.
type Color struct {
	R, G, B float32
}

// Graph collects named metric series for one component. All methods are
// safe for concurrent use.
type Graph struct {
	name string

	locker xsync.Mutex
	colors map[string]Color
	guides map[string]float64
	values map[string]*atomic.Float64
	tags   map[string]*atomic.Uint64
}

func NewGraph(
	ctx context.Context,
	name string,
) *Graph {
	logger.Debugf(ctx, "NewGraph(%s)", name)
	return &Graph{
		name:   name,
		colors: map[string]Color{},
		guides: map[string]float64{},
		values: map[string]*atomic.Float64{},
		tags:   map[string]*atomic.Uint64{},
	}
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) SetColor(ctx context.Context, series string, color Color) {
	g.locker.Do(ctx, func() {
		g.colors[series] = color
	})
}

func (g *Graph) Color(ctx context.Context, series string) Color {
	return xsync.DoR1(ctx, &g.locker, func() Color {
		return g.colors[series]
	})
}

// AddGuide sets a horizontal reference line for a series.
func (g *Graph) AddGuide(ctx context.Context, series string, value float64) {
	g.locker.Do(ctx, func() {
		g.guides[series] = value
	})
}

// SetValue stores the current value of a gauge series.
func (g *Graph) SetValue(ctx context.Context, series string, value float64) {
	g.gauge(ctx, series).Store(value)
}

// UpdateValue is an alias of SetValue kept separate so call sites read
// the same way the frontends distinguish sampled vs pushed series.
func (g *Graph) UpdateValue(ctx context.Context, series string, value float64) {
	g.gauge(ctx, series).Store(value)
}

func (g *Graph) Value(ctx context.Context, series string) float64 {
	return g.gauge(ctx, series).Load()
}

// Tag records one occurrence of a named event (e.g. "seek").
func (g *Graph) Tag(ctx context.Context, event string) {
	logger.Tracef(ctx, "Tag(%s, %s)", g.name, event)
	g.counter(ctx, event).Add(1)
}

func (g *Graph) TagCount(ctx context.Context, event string) uint64 {
	return g.counter(ctx, event).Load()
}

func (g *Graph) gauge(ctx context.Context, series string) *atomic.Float64 {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &g.locker, func() *atomic.Float64 {
		v := g.values[series]
		if v == nil {
			v = atomic.NewFloat64(0)
			g.values[series] = v
		}
		return v
	})
}

func (g *Graph) counter(ctx context.Context, event string) *atomic.Uint64 {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &g.locker, func() *atomic.Uint64 {
		v := g.tags[event]
		if v == nil {
			v = atomic.NewUint64(0)
			g.tags[event] = v
		}
		return v
	})
}
