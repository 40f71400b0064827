package builders

import (
	"context"
	"time"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Stair defaults, mm.
const (
	DefaultStairWidth     = 1000.0
	DefaultTreadThickness = 40.0
	DefaultStringerDepth  = 250.0
	stringerThickness     = 12.0
)

// Stairs builds a straight flight from PointA (bottom nosing line) to
// PointB (top landing level): equal treads carried by two pitched
// stringers.
type Stairs struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Stairs)(nil)

func NewStairs() *Stairs {
	return &Stairs{builder.Base{Type: TypeStairs}}
}

func (s *Stairs) size(c *builder.Context, in builder.Input) calc.StairResult {
	return calc.Stairs(calc.StairInput{
		Rise:        c.Rise(),
		Run:         c.Run(),
		Width:       builder.Param(c, in, "width", DefaultStairWidth),
		RiserHeight: builder.Param(c, in, "riserHeight", 0),
	})
}

// Validate checks riser height, tread depth, width and flight rise.
func (s *Stairs) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	return findings(s.size(c, in).Result, in.Name)
}

func (s *Stairs) EstimateBuildTime(c *builder.Context, in builder.Input) time.Duration {
	return builder.EstimateFromParts(c, s.size(c, in).TreadCount+2)
}

func (s *Stairs) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r := s.size(c, in)
	if err := preflight(c, TypeStairs, in, r.Result); err != nil {
		return nil, err
	}
	tread := builder.Param(c, in, "treadThickness", DefaultTreadThickness)
	depth := builder.Param(c, in, "stringerDepth", DefaultStringerDepth)

	b, err := builder.NewConstruction(ctx, c, TypeStairs, in.Name, r.TreadCount+2)
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing flight")

	for i := 0; i < r.TreadCount; i++ {
		offset := geometry.Vec3{
			X: float64(i) * r.TreadDepth,
			Y: -r.Width / 2,
			Z: float64(i+1)*r.RiserHeight - tread,
		}
		if err := b.Box(r.TreadDepth, r.Width, tread, offset, 0); err != nil {
			return nil, err
		}
	}
	for _, y := range []float64{-r.Width/2 - stringerThickness, r.Width / 2} {
		if err := b.Box(r.StringerLength, stringerThickness, depth, geometry.Vec3{Y: y, Z: -depth}, r.Angle); err != nil {
			return nil, err
		}
	}

	return b.Complete(map[string]any{
		"riserHeight":      r.RiserHeight,
		"treadDepth":       r.TreadDepth,
		"riserCount":       r.RiserCount,
		"treadCount":       r.TreadCount,
		"width":            r.Width,
		"angle":            r.Angle,
		"handrailRequired": r.HandrailRequired,
		"landingsRequired": r.LandingsRequired,
	})
}
