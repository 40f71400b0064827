package builders

import (
	"context"
	"time"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Member defaults, mm.
const (
	DefaultBeamDepth           = 200.0
	DefaultFlangeWidth         = 100.0
	DefaultFlangeThickness     = 10.0
	DefaultWebThickness        = 6.0
	DefaultColumnSize          = 200.0
	DefaultBraceDiameter       = 60.0
	memberPartsBeam            = 3
	memberPartsColumnOrBracing = 1
)

// ----------------------------------------------------------------------------
// Beam
// ----------------------------------------------------------------------------

// Beam builds an I section from PointA to PointB, centred on the line
// between them and pitched to follow it.
type Beam struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Beam)(nil)

func NewBeam() *Beam {
	return &Beam{builder.Base{Type: TypeBeam}}
}

func (bm *Beam) size(c *builder.Context, in builder.Input) (calc.BeamResult, calc.BeamInput) {
	bi := calc.BeamInput{
		Length:          c.Length(),
		Depth:           builder.Param(c, in, "depth", DefaultBeamDepth),
		FlangeWidth:     builder.Param(c, in, "flangeWidth", DefaultFlangeWidth),
		FlangeThickness: builder.Param(c, in, "flangeThickness", DefaultFlangeThickness),
		WebThickness:    builder.Param(c, in, "webThickness", DefaultWebThickness),
	}
	return calc.Beam(bi), bi
}

// Validate checks the section and the span/depth ratio.
func (bm *Beam) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	r, _ := bm.size(c, in)
	return findings(r.Result, in.Name)
}

func (bm *Beam) EstimateBuildTime(c *builder.Context, _ builder.Input) time.Duration {
	return builder.EstimateFromParts(c, memberPartsBeam)
}

func (bm *Beam) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r, s := bm.size(c, in)
	if err := preflight(c, TypeBeam, in, r.Result); err != nil {
		return nil, err
	}
	b, err := builder.NewConstruction(ctx, c, TypeBeam, in.Name, memberPartsBeam)
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing section")

	pitch := c.Pitch()
	half := s.Depth / 2
	web := s.Depth - 2*s.FlangeThickness
	parts := []struct {
		width, height float64
		offset        geometry.Vec3
	}{
		{s.FlangeWidth, s.FlangeThickness, geometry.Vec3{Y: -s.FlangeWidth / 2, Z: -half}},
		{s.WebThickness, web, geometry.Vec3{Y: -s.WebThickness / 2, Z: -half + s.FlangeThickness}},
		{s.FlangeWidth, s.FlangeThickness, geometry.Vec3{Y: -s.FlangeWidth / 2, Z: half - s.FlangeThickness}},
	}
	for _, p := range parts {
		if err := b.Box(s.Length, p.width, p.height, p.offset, pitch); err != nil {
			return nil, err
		}
	}

	return b.Complete(map[string]any{
		"length":         r.Length,
		"depth":          r.Depth,
		"spanDepthRatio": r.SpanDepthRatio,
		"flangeWidth":    s.FlangeWidth,
		"sectionArea":    r.Area,
	})
}

// ----------------------------------------------------------------------------
// Column
// ----------------------------------------------------------------------------

// Column builds a vertical column standing on PointA and reaching PointB's
// level. A diameter parameter selects a round section; otherwise the
// section is square.
type Column struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Column)(nil)

func NewColumn() *Column {
	return &Column{builder.Base{Type: TypeColumn}}
}

func (col *Column) size(c *builder.Context, in builder.Input) (calc.ColumnResult, calc.ColumnInput) {
	ci := calc.ColumnInput{
		Height:   c.Rise(),
		Size:     builder.Param(c, in, "size", DefaultColumnSize),
		Diameter: builder.Param(c, in, "diameter", 0),
		K:        builder.Param(c, in, "k", 1),
	}
	return calc.Column(ci), ci
}

// Validate checks the slenderness ratio.
func (col *Column) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	r, _ := col.size(c, in)
	return findings(r.Result, in.Name)
}

func (col *Column) EstimateBuildTime(c *builder.Context, _ builder.Input) time.Duration {
	return builder.EstimateFromParts(c, memberPartsColumnOrBracing)
}

func (col *Column) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r, s := col.size(c, in)
	if err := preflight(c, TypeColumn, in, r.Result); err != nil {
		return nil, err
	}
	b, err := builder.NewConstruction(ctx, c, TypeColumn, in.Name, memberPartsColumnOrBracing)
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing column")

	meta := map[string]any{
		"height":      r.Height,
		"slenderness": r.Slenderness,
	}
	if r.Round {
		err = b.Cylinder(s.Height, s.Diameter/2, geometry.Vec3{}, geometry.Vec3{})
		meta["diameter"] = s.Diameter
	} else {
		err = b.Box(s.Size, s.Size, s.Height, geometry.Vec3{X: -s.Size / 2, Y: -s.Size / 2}, 0)
		meta["size"] = s.Size
	}
	if err != nil {
		return nil, err
	}
	return b.Complete(meta)
}

// ----------------------------------------------------------------------------
// Bracing
// ----------------------------------------------------------------------------

// Bracing builds a round diagonal brace from PointA to PointB.
type Bracing struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Bracing)(nil)

func NewBracing() *Bracing {
	return &Bracing{builder.Base{Type: TypeBracing}}
}

func (br *Bracing) size(c *builder.Context, in builder.Input) calc.BracingResult {
	return calc.Bracing(calc.BracingInput{
		Length:   c.Length(),
		Rise:     c.Rise(),
		Diameter: builder.Param(c, in, "diameter", DefaultBraceDiameter),
	})
}

// Validate checks slenderness and inclination.
func (br *Bracing) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	return findings(br.size(c, in).Result, in.Name)
}

func (br *Bracing) EstimateBuildTime(c *builder.Context, _ builder.Input) time.Duration {
	return builder.EstimateFromParts(c, memberPartsColumnOrBracing)
}

func (br *Bracing) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r := br.size(c, in)
	if err := preflight(c, TypeBracing, in, r.Result); err != nil {
		return nil, err
	}
	diameter := builder.Param(c, in, "diameter", DefaultBraceDiameter)
	b, err := builder.NewConstruction(ctx, c, TypeBracing, in.Name, memberPartsColumnOrBracing)
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing brace")

	// Tip the cylinder axis from Z down onto the A→B pitch.
	tilt := geometry.Vec3{Y: 90 - c.Pitch()}
	if err := b.Cylinder(r.Length, diameter/2, geometry.Vec3{}, tilt); err != nil {
		return nil, err
	}
	return b.Complete(map[string]any{
		"length":      r.Length,
		"angle":       r.Angle,
		"slenderness": r.Slenderness,
		"diameter":    diameter,
	})
}
