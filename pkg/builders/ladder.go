package builders

import (
	"context"
	"time"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Ladder defaults, mm.
const (
	DefaultLadderWidth  = 450.0
	DefaultRungDiameter = 25.0
	ladderRailDepth     = 60.0
	ladderRailThickness = 12.0
)

// Ladder builds a fixed ladder standing at PointA and reaching the level
// of PointB: two side rails extended above the landing and evenly spaced
// round rungs.
type Ladder struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Ladder)(nil)

func NewLadder() *Ladder {
	return &Ladder{builder.Base{Type: TypeLadder}}
}

func (l *Ladder) size(c *builder.Context, in builder.Input) calc.LadderResult {
	return calc.Ladder(calc.LadderInput{
		Height:       c.Rise(),
		Width:        builder.Param(c, in, "width", DefaultLadderWidth),
		RungSpacing:  builder.Param(c, in, "rungSpacing", 0),
		RungDiameter: builder.Param(c, in, "rungDiameter", DefaultRungDiameter),
	})
}

// Validate checks rung spacing, clear width and rung diameter.
func (l *Ladder) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	return findings(l.size(c, in).Result, in.Name)
}

func (l *Ladder) EstimateBuildTime(c *builder.Context, in builder.Input) time.Duration {
	return builder.EstimateFromParts(c, l.size(c, in).RungCount+2)
}

func (l *Ladder) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r := l.size(c, in)
	if err := preflight(c, TypeLadder, in, r.Result); err != nil {
		return nil, err
	}
	diameter := builder.Param(c, in, "rungDiameter", DefaultRungDiameter)

	b, err := builder.NewConstruction(ctx, c, TypeLadder, in.Name, r.RungCount+2)
	if err != nil {
		return nil, err
	}
	b.Progress(0, "laying out rungs")

	w := r.ClearWidth
	for _, y := range []float64{-w/2 - ladderRailThickness, w / 2} {
		offset := geometry.Vec3{X: -ladderRailDepth / 2, Y: y}
		if err := b.Box(ladderRailDepth, ladderRailThickness, r.RailLength, offset, 0); err != nil {
			return nil, err
		}
	}
	// Rungs run across the clear width: the cylinder axis is turned from Z
	// onto Y.
	across := geometry.Vec3{X: -90}
	for i := 1; i <= r.RungCount; i++ {
		offset := geometry.Vec3{Y: -w / 2, Z: float64(i) * r.RungSpacing}
		if err := b.Cylinder(w, diameter/2, offset, across); err != nil {
			return nil, err
		}
	}

	return b.Complete(map[string]any{
		"rungSpacing":            r.RungSpacing,
		"rungCount":              r.RungCount,
		"clearWidth":             r.ClearWidth,
		"height":                 r.Height,
		"rungDiameter":           diameter,
		"fallProtectionRequired": r.FallProtectionRequired,
	})
}
