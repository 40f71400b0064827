// Package builder defines the contract every domain builder implements, the
// registry that resolves builders by element type, and Construction, the
// shared procedure builders use to emit and fold kernel primitives.
package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateBuilder is returned when an element type is registered twice.
	ErrDuplicateBuilder = errors.New("builder already registered")
	// ErrUnknownElement is returned when no builder handles an element type.
	ErrUnknownElement = errors.New("unknown element type")
)

// ProgressFunc receives construction progress (0-100) and a short message.
type ProgressFunc func(percent float64, message string)

// Options tune a build.
type Options struct {
	MeshQuality              float64 // 0..1, scales build time estimates
	GenerateConnectionPoints bool
	ValidateDuringBuild      bool
	// ReleaseIntermediates deletes superseded kernel handles while folding.
	ReleaseIntermediates bool
	OnProgress           ProgressFunc
}

// Context carries everything a builder needs for one element.
type Context struct {
	PointA      geometry.Vec3
	PointB      geometry.Vec3
	Environment *geometry.Environment
	Material    geometry.Material
	Parameters  map[string]float64
	Options     Options

	Kernel geometry.Ops
	Logger *zap.Logger
}

// Delta returns PointB - PointA.
func (c *Context) Delta() geometry.Vec3 {
	return geometry.Vec3{X: c.PointB.X - c.PointA.X, Y: c.PointB.Y - c.PointA.Y, Z: c.PointB.Z - c.PointA.Z}
}

// Length is the straight-line distance from A to B.
func (c *Context) Length() float64 {
	d := c.Delta()
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// Run is the horizontal distance from A to B.
func (c *Context) Run() float64 {
	d := c.Delta()
	return math.Hypot(d.X, d.Y)
}

// Rise is the vertical distance from A to B.
func (c *Context) Rise() float64 {
	return c.PointB.Z - c.PointA.Z
}

// Heading is the plan angle of A→B from +X, in degrees.
func (c *Context) Heading() float64 {
	d := c.Delta()
	if d.X == 0 && d.Y == 0 {
		return 0
	}
	return math.Atan2(d.Y, d.X) * 180 / math.Pi
}

// Pitch is the elevation angle of A→B above horizontal, in degrees.
func (c *Context) Pitch() float64 {
	return math.Atan2(c.Rise(), c.Run()) * 180 / math.Pi
}

// Log returns the context logger, or a no-op logger.
func (c *Context) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Input is the per-element request handed to a builder.
type Input struct {
	Name   string
	Params map[string]float64
}

// Param looks a parameter up in the input, then the context, then falls
// back to def.
func Param(c *Context, in Input, key string, def float64) float64 {
	if v, ok := in.Params[key]; ok {
		return v
	}
	if c != nil {
		if v, ok := c.Parameters[key]; ok {
			return v
		}
	}
	return def
}

// GeometryBuilder turns one design element into kernel geometry.
type GeometryBuilder interface {
	ElementType() string
	// Build drives the kernel and returns the finished component. Any
	// kernel failure aborts the build; shapes created before the failure
	// are left in the kernel.
	Build(ctx context.Context, c *Context, in Input) (*geometry.GeometryResult, error)
	// Validate is a pure pre-flight check that never touches the kernel.
	Validate(c *Context, in Input) geometry.ValidationResult
	// EstimateBuildTime is a UX heuristic.
	EstimateBuildTime(c *Context, in Input) time.Duration
}

// Base supplies permissive defaults. Embed it and override what differs.
type Base struct {
	Type string
}

func (b Base) ElementType() string { return b.Type }

func (Base) Validate(*Context, Input) geometry.ValidationResult {
	return geometry.NewValidationResult()
}

func (Base) EstimateBuildTime(c *Context, _ Input) time.Duration {
	return scaleEstimate(c, 500*time.Millisecond)
}

// scaleEstimate stretches a base estimate by mesh quality.
func scaleEstimate(c *Context, base time.Duration) time.Duration {
	q := 0.5
	if c != nil && c.Options.MeshQuality > 0 {
		q = c.Options.MeshQuality
	}
	return time.Duration(float64(base) * (0.5 + q))
}

// EstimateFromParts is the usual estimate: a fixed cost per primitive.
func EstimateFromParts(c *Context, parts int) time.Duration {
	return scaleEstimate(c, time.Duration(parts)*40*time.Millisecond)
}

// Registry maps element types to builders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]GeometryBuilder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]GeometryBuilder)}
}

// Register adds b. A second builder for the same element type is rejected.
func (r *Registry) Register(b GeometryBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := b.ElementType()
	if t == "" {
		return fmt.Errorf("register builder: empty element type")
	}
	if _, ok := r.builders[t]; ok {
		return fmt.Errorf("register %q: %w", t, ErrDuplicateBuilder)
	}
	r.builders[t] = b
	return nil
}

// Replace installs b, overriding any builder for the same element type.
// It reports whether one was replaced.
func (r *Registry) Replace(b GeometryBuilder) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.builders[b.ElementType()]
	r.builders[b.ElementType()] = b
	return existed
}

// Get returns the builder for elementType.
func (r *Registry) Get(elementType string) (GeometryBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[elementType]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownElement, elementType)
	}
	return b, nil
}

// Types returns the registered element types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := lo.Keys(r.builders)
	sort.Strings(types)
	return types
}
