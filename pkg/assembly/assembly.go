// Package assembly composes built components into assemblies: combined
// bounds and weight, connection points, a CSG union of every component and
// pairwise clearance validation.
//
// Assemblies evolve by functional update. Every operation returns a new
// AssemblyResult and leaves its input untouched.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ErrEmptyAssembly is returned when an assembly would have no components.
var ErrEmptyAssembly = errors.New("assembly has no components")

// DefaultLowClearance is the gap below which touching components are
// flagged, mm.
const DefaultLowClearance = 1.0

// Builder composes assemblies against one kernel.
type Builder struct {
	ops          geometry.Ops
	logger       *zap.Logger
	lowClearance float64
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithLowClearance sets the LOW_CLEARANCE threshold in mm.
func WithLowClearance(mm float64) Option {
	return func(b *Builder) { b.lowClearance = mm }
}

// New returns a Builder using ops for unions and distance measurements.
func New(ops geometry.Ops, opts ...Option) *Builder {
	b := &Builder{ops: ops, logger: zap.NewNop(), lowClearance: DefaultLowClearance}
	for _, o := range opts {
		o(b)
	}
	return b
}

// BuildAssembly creates an assembly from components and validates it.
func (b *Builder) BuildAssembly(ctx context.Context, name string, components []geometry.GeometryResult, connections []geometry.Connection) (*geometry.AssemblyResult, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("build assembly %q: %w", name, ErrEmptyAssembly)
	}
	a := &geometry.AssemblyResult{
		ID:          uuid.NewString(),
		Name:        name,
		Components:  append([]geometry.GeometryResult(nil), components...),
		Connections: append([]geometry.Connection(nil), connections...),
	}
	b.summarize(a)
	a.Validation = b.ValidateAssembly(ctx, a)
	b.logger.Debug("built assembly",
		zap.String("name", name),
		zap.Int("components", len(a.Components)),
		zap.Float64("weight", a.TotalWeight),
		zap.Bool("valid", a.Validation.Valid))
	return a, nil
}

// summarize recomputes bounds, weight and connection points.
func (b *Builder) summarize(a *geometry.AssemblyResult) {
	a.Bounds = lo.Reduce(a.Components[1:], func(acc geometry.Bounds, g geometry.GeometryResult, _ int) geometry.Bounds {
		return acc.Union(g.Bounds)
	}, a.Components[0].Bounds)
	a.TotalWeight = lo.SumBy(a.Components, func(g geometry.GeometryResult) float64 {
		return g.Properties.Weight
	})
	a.ConnectionPoints = b.connectionPoints(a)
}

// connectionPoints locates the supplied connections. Endpoints may name a
// component by id or by name; connections naming an unknown component are
// dropped.
func (b *Builder) connectionPoints(a *geometry.AssemblyResult) []geometry.ConnectionPoint {
	ids := make(map[string]string, 2*len(a.Components))
	for _, g := range a.Components {
		ids[g.ID] = g.ID
		if g.Name != "" {
			ids[g.Name] = g.ID
		}
	}
	points := make([]geometry.ConnectionPoint, 0, len(a.Connections))
	for _, c := range a.Connections {
		from, okFrom := ids[c.From]
		to, okTo := ids[c.To]
		if !okFrom || !okTo {
			b.logger.Debug("dropping connection to unknown component",
				zap.String("from", c.From), zap.String("to", c.To))
			continue
		}
		points = append(points, geometry.ConnectionPoint{
			Components: []string{from, to},
			Kind:       c.Kind,
			Position:   c.Point,
		})
	}
	return points
}

// CombineComponents unions every component shape, left to right in list
// order, and records the result as CombinedShapeID. A single component
// passes through with its own handle.
func (b *Builder) CombineComponents(ctx context.Context, a *geometry.AssemblyResult) (*geometry.AssemblyResult, error) {
	if len(a.Components) == 0 {
		return nil, fmt.Errorf("combine %q: %w", a.Name, ErrEmptyAssembly)
	}
	out := a.Clone()
	acc := a.Components[0].ShapeID
	for _, g := range a.Components[1:] {
		next, err := b.ops.Union(ctx, acc, g.ShapeID)
		if err != nil {
			return nil, fmt.Errorf("combine %q: union with %s: %w", a.Name, g.Label(), err)
		}
		acc = next
	}
	out.CombinedShapeID = acc
	return out, nil
}

// AddComponent returns a new assembly with component appended and, when
// given, connection recorded. The whole assembly is re-validated, so every
// pair is measured again on each call.
func (b *Builder) AddComponent(ctx context.Context, a *geometry.AssemblyResult, component geometry.GeometryResult, connection *geometry.Connection) (*geometry.AssemblyResult, error) {
	out := a.Clone()
	out.Components = append(out.Components, component)
	if connection != nil {
		out.Connections = append(out.Connections, *connection)
	}
	// The combined shape no longer covers every component.
	out.CombinedShapeID = ""
	b.summarize(out)
	out.Validation = b.ValidateAssembly(ctx, out)
	return out, nil
}

// ValidateAssembly measures every unordered pair of components. Overlap is
// an INTERFERENCE error, a gap under the low clearance threshold a
// LOW_CLEARANCE warning and a failed measurement a MEASUREMENT_FAILED
// warning.
func (b *Builder) ValidateAssembly(ctx context.Context, a *geometry.AssemblyResult) geometry.ValidationResult {
	res := geometry.NewValidationResult()
	comps := a.Components
	for i := 0; i < len(comps); i++ {
		for j := i + 1; j < len(comps); j++ {
			g1, g2 := &comps[i], &comps[j]
			d, err := b.ops.MeasureDistance(ctx, g1.ShapeID, g2.ShapeID)
			if err != nil {
				b.logger.Warn("clearance measurement failed",
					zap.String("a", g1.ID), zap.String("b", g2.ID), zap.Error(err))
				res.AddWarning(geometry.CodeMeasurementFailed,
					fmt.Sprintf("could not measure clearance between %s and %s: %v", g1.Label(), g2.Label(), err),
					g1.ID, g2.ID)
				continue
			}

			res.ClearanceChecks = append(res.ClearanceChecks, geometry.ClearanceCheck{
				Component1:        g1.ID,
				Component2:        g2.ID,
				MinDistance:       d.Value,
				RequiredClearance: b.lowClearance,
				Passed:            d.Value >= b.lowClearance,
				ClosestPoints:     &[2]geometry.Vec3{d.PointA, d.PointB},
			})
			switch {
			case d.Value < 0:
				res.AddError(geometry.CodeInterference,
					fmt.Sprintf("%s and %s overlap by %.2fmm", g1.Label(), g2.Label(), -d.Value),
					g1.ID, g2.ID)
			case d.Value < b.lowClearance:
				res.AddWarning(geometry.CodeLowClearance,
					fmt.Sprintf("%s and %s are %.2fmm apart, below %.2fmm", g1.Label(), g2.Label(), d.Value, b.lowClearance),
					g1.ID, g2.ID)
			}
		}
	}
	return res
}
