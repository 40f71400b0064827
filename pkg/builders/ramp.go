package builders

import (
	"context"
	"time"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Ramp defaults, mm.
const (
	DefaultRampWidth     = 1200.0
	DefaultRampThickness = 100.0
	rampCurbThickness    = 50.0
	rampHandrailHeight   = 865.0 // ADA 505.4, 34-38in
	rampHandrailSize     = 40.0
)

// Ramp builds a sloped deck from PointA up to PointB with edge curbs and,
// when the rise calls for them, handrails on both sides.
type Ramp struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Ramp)(nil)

func NewRamp() *Ramp {
	return &Ramp{builder.Base{Type: TypeRamp}}
}

func (rb *Ramp) size(c *builder.Context, in builder.Input) calc.RampResult {
	return calc.Ramp(calc.RampInput{
		Rise:  c.Rise(),
		Run:   c.Run(),
		Width: builder.Param(c, in, "width", DefaultRampWidth),
	})
}

func rampParts(r calc.RampResult) int {
	if r.HandrailsRequired {
		return 5
	}
	return 3
}

// Validate checks slope, width and the rise of each run.
func (rb *Ramp) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	return findings(rb.size(c, in).Result, in.Name)
}

func (rb *Ramp) EstimateBuildTime(c *builder.Context, in builder.Input) time.Duration {
	return builder.EstimateFromParts(c, rampParts(rb.size(c, in)))
}

func (rb *Ramp) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r := rb.size(c, in)
	if err := preflight(c, TypeRamp, in, r.Result); err != nil {
		return nil, err
	}
	thickness := builder.Param(c, in, "thickness", DefaultRampThickness)

	b, err := builder.NewConstruction(ctx, c, TypeRamp, in.Name, rampParts(r))
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing ramp")

	w := r.Width
	if err := b.Box(r.Length, w, thickness, geometry.Vec3{Y: -w / 2, Z: -thickness}, r.Angle); err != nil {
		return nil, err
	}
	for _, y := range []float64{-w / 2, w/2 - rampCurbThickness} {
		if err := b.Box(r.Length, rampCurbThickness, calc.RampEdgeCurbHeight, geometry.Vec3{Y: y}, r.Angle); err != nil {
			return nil, err
		}
	}
	if r.HandrailsRequired {
		for _, y := range []float64{-w / 2, w/2 - rampHandrailSize} {
			offset := geometry.Vec3{Y: y, Z: rampHandrailHeight}
			if err := b.Box(r.Length, rampHandrailSize, rampHandrailSize, offset, r.Angle); err != nil {
				return nil, err
			}
		}
	}

	return b.Complete(map[string]any{
		"slope":             r.Slope,
		"rise":              c.Rise(),
		"run":               c.Run(),
		"width":             r.Width,
		"angle":             r.Angle,
		"length":            r.Length,
		"landingsRequired":  r.LandingsRequired,
		"handrailsRequired": r.HandrailsRequired,
	})
}
