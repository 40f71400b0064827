package builders

import (
	"context"
	"time"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Platform defaults, mm.
const (
	DefaultPlatformWidth = 1200.0
	platformPostSize     = 75.0
	platformRailSize     = 40.0
	platformToeThickness = 20.0
)

// Platform builds an elevated deck whose top sits at PointA's level and
// whose length runs from PointA to PointB in plan. Posts carry the deck
// down to the floor and, above the guard height threshold, up to the top
// rail; guards add a top rail, midrail and toe board on both long sides.
type Platform struct {
	builder.Base
}

var _ builder.GeometryBuilder = (*Platform)(nil)

func NewPlatform() *Platform {
	return &Platform{builder.Base{Type: TypePlatform}}
}

func floorLevel(c *builder.Context) float64 {
	if c.Environment == nil {
		return 0
	}
	return c.Environment.FloorLevel
}

func (p *Platform) size(c *builder.Context, in builder.Input) calc.PlatformResult {
	return calc.Platform(calc.PlatformInput{
		Height:        builder.Param(c, in, "height", c.PointA.Z-floorLevel(c)),
		Length:        c.Run(),
		Width:         builder.Param(c, in, "width", DefaultPlatformWidth),
		DeckThickness: builder.Param(c, in, "deckThickness", 0),
		GuardHeight:   builder.Param(c, in, "guardHeight", 0),
	})
}

func platformParts(r calc.PlatformResult) int {
	n := 1
	if r.Height > r.DeckThickness {
		n += 2 * r.PostCount
	}
	if r.GuardRequired {
		n += 6
	}
	return n
}

// Validate checks deck thickness and guard height.
func (p *Platform) Validate(c *builder.Context, in builder.Input) geometry.ValidationResult {
	return findings(p.size(c, in).Result, in.Name)
}

func (p *Platform) EstimateBuildTime(c *builder.Context, in builder.Input) time.Duration {
	return builder.EstimateFromParts(c, platformParts(p.size(c, in)))
}

func (p *Platform) Build(ctx context.Context, c *builder.Context, in builder.Input) (*geometry.GeometryResult, error) {
	r := p.size(c, in)
	if err := preflight(c, TypePlatform, in, r.Result); err != nil {
		return nil, err
	}
	length := c.Run()
	width := builder.Param(c, in, "width", DefaultPlatformWidth)

	b, err := builder.NewConstruction(ctx, c, TypePlatform, in.Name, platformParts(r))
	if err != nil {
		return nil, err
	}
	b.Progress(0, "sizing deck")

	if err := b.Box(length, width, r.DeckThickness, geometry.Vec3{Y: -width / 2, Z: -r.DeckThickness}, 0); err != nil {
		return nil, err
	}

	sides := []float64{-width / 2, width/2 - platformPostSize}
	if r.Height > r.DeckThickness {
		top := -r.DeckThickness
		if r.GuardRequired {
			top = r.GuardHeight
		}
		step := (length - platformPostSize) / float64(r.PostCount-1)
		for _, y := range sides {
			for i := 0; i < r.PostCount; i++ {
				offset := geometry.Vec3{X: float64(i) * step, Y: y, Z: -r.Height}
				if err := b.Box(platformPostSize, platformPostSize, top+r.Height, offset, 0); err != nil {
					return nil, err
				}
			}
		}
	}

	if r.GuardRequired {
		for _, y := range sides {
			rails := []struct {
				z, thick, height float64
			}{
				{r.GuardHeight - platformRailSize, platformRailSize, platformRailSize},
				{r.MidrailHeight, platformRailSize, platformRailSize},
				{0, platformToeThickness, calc.ToeBoardHeight},
			}
			for _, rail := range rails {
				if err := b.Box(length, rail.thick, rail.height, geometry.Vec3{Y: y, Z: rail.z}, 0); err != nil {
					return nil, err
				}
			}
		}
	}

	return b.Complete(map[string]any{
		"height":        r.Height,
		"guardHeight":   r.GuardHeight,
		"guardRequired": r.GuardRequired,
		"deckThickness": r.DeckThickness,
		"postCount":     r.PostCount,
		"length":        length,
		"width":         width,
		"deckArea":      r.DeckArea,
	})
}
