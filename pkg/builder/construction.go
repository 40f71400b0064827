package builder

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Construction runs the shared build procedure: emit primitives, rotate
// then translate each into place relative to PointA and the plan heading
// of A→B, fold them with sequential unions and finish with the bounding
// box and mass property queries. Every step is one blocking kernel call
// and steps are strictly ordered.
type Construction struct {
	ctx         context.Context
	c           *Context
	ops         geometry.Ops
	elementType string
	name        string
	heading     float64

	parts []geometry.ShapeID
	done  int
	total int
}

// NewConstruction starts a build expected to place about parts primitives.
func NewConstruction(ctx context.Context, c *Context, elementType, name string, parts int) (*Construction, error) {
	if c == nil || c.Kernel == nil {
		return nil, fmt.Errorf("build %s: no kernel in context", elementType)
	}
	if parts < 1 {
		parts = 1
	}
	if name == "" {
		name = elementType
	}
	return &Construction{
		ctx:         ctx,
		c:           c,
		ops:         c.Kernel,
		elementType: elementType,
		name:        name,
		heading:     c.Heading(),
		total:       parts,
	}, nil
}

// Progress reports percent through the context's callback.
func (b *Construction) Progress(percent float64, message string) {
	if cb := b.c.Options.OnProgress; cb != nil {
		cb(math.Max(0, math.Min(100, percent)), message)
	}
}

// partProgress maps placed parts onto 5-80%; the fold and the final queries
// use the rest.
func (b *Construction) partProgress(message string) {
	b.done++
	b.Progress(5+75*float64(b.done)/float64(b.total), message)
}

func (b *Construction) release(ids ...geometry.ShapeID) {
	if !b.c.Options.ReleaseIntermediates {
		return
	}
	for _, id := range ids {
		if err := b.ops.Delete(b.ctx, id); err != nil {
			b.c.Log().Debug("release intermediate shape", zap.String("shape", string(id)), zap.Error(err))
		}
	}
}

// Box adds a box of size (x, y, z) whose minimum corner sits at offset in
// the element frame, tilted by pitch degrees about the frame's Y axis.
func (b *Construction) Box(x, y, z float64, offset geometry.Vec3, pitch float64) error {
	id, err := b.ops.Box(b.ctx, x, y, z)
	if err != nil {
		return fmt.Errorf("%s box: %w", b.elementType, err)
	}
	return b.place(id, offset, geometry.Vec3{Y: -pitch})
}

// Cylinder adds a cylinder along the frame's Z axis with its base centre
// at offset. rotation is applied in the element frame before the heading.
func (b *Construction) Cylinder(height, radius float64, offset, rotation geometry.Vec3) error {
	id, err := b.ops.Cylinder(b.ctx, height, radius)
	if err != nil {
		return fmt.Errorf("%s cylinder: %w", b.elementType, err)
	}
	return b.place(id, offset, rotation)
}

// place rotates id by rotation plus the element heading, then translates
// it to PointA + offset rotated into plan.
func (b *Construction) place(id geometry.ShapeID, offset, rotation geometry.Vec3) error {
	euler := geometry.Vec3{X: rotation.X, Y: rotation.Y, Z: rotation.Z + b.heading}
	placed := id
	if euler != (geometry.Vec3{}) {
		rotated, err := b.ops.Rotate(b.ctx, id, euler)
		if err != nil {
			return fmt.Errorf("%s rotate: %w", b.elementType, err)
		}
		b.release(id)
		placed = rotated
	}

	world := r3.Add(b.c.PointA, r3.Rotate(offset, b.heading*math.Pi/180, r3.Vec{Z: 1}))
	moved, err := b.ops.Translate(b.ctx, placed, world)
	if err != nil {
		return fmt.Errorf("%s translate: %w", b.elementType, err)
	}
	b.release(placed)
	b.parts = append(b.parts, moved)
	b.partProgress(fmt.Sprintf("placed part %d of %d", len(b.parts), b.total))
	return nil
}

// Union folds every placed part into one shape, left to right.
func (b *Construction) Union() (geometry.ShapeID, error) {
	if len(b.parts) == 0 {
		return "", fmt.Errorf("%s: nothing to combine", b.elementType)
	}
	b.Progress(80, "combining parts")
	acc := b.parts[0]
	for _, part := range b.parts[1:] {
		next, err := b.ops.Union(b.ctx, acc, part)
		if err != nil {
			return "", fmt.Errorf("%s union: %w", b.elementType, err)
		}
		b.release(acc, part)
		acc = next
	}
	return acc, nil
}

// Finish queries bounds and mass properties of shape and assembles the
// component. metadata is stored as given.
func (b *Construction) Finish(shape geometry.ShapeID, metadata map[string]any) (*geometry.GeometryResult, error) {
	b.Progress(90, "measuring")
	bounds, err := b.ops.BoundingBox(b.ctx, shape)
	if err != nil {
		return nil, fmt.Errorf("%s bounding box: %w", b.elementType, err)
	}
	mp, err := b.ops.MassProperties(b.ctx, shape)
	if err != nil {
		return nil, fmt.Errorf("%s mass properties: %w", b.elementType, err)
	}

	if metadata == nil {
		metadata = make(map[string]any)
	}
	if b.c.Options.GenerateConnectionPoints {
		metadata["connectionPoints"] = []geometry.Vec3{b.c.PointA, b.c.PointB}
	}

	res := &geometry.GeometryResult{
		ID:          uuid.NewString(),
		ShapeID:     shape,
		Name:        b.name,
		ElementType: b.elementType,
		Bounds:      bounds,
		Transform: geometry.Transform{
			Position: b.c.PointA,
			Rotation: geometry.Vec3{Z: b.heading},
		},
		Properties: geometry.Properties{
			Volume:       mp.Volume,
			SurfaceArea:  mp.SurfaceArea,
			Weight:       geometry.WeightFromVolume(mp.Volume, b.c.Material.Density),
			CenterOfMass: mp.CenterOfMass,
		},
		Material: b.c.Material,
		Metadata: metadata,
	}
	b.Progress(100, "done")
	b.c.Log().Debug("built component",
		zap.String("type", b.elementType),
		zap.String("name", b.name),
		zap.Int("parts", len(b.parts)),
		zap.Float64("weight", res.Properties.Weight))
	return res, nil
}

// Complete is Union followed by Finish.
func (b *Construction) Complete(metadata map[string]any) (*geometry.GeometryResult, error) {
	shape, err := b.Union()
	if err != nil {
		return nil, err
	}
	return b.Finish(shape, metadata)
}

// Parts returns the placed part handles.
func (b *Construction) Parts() []geometry.ShapeID {
	return append([]geometry.ShapeID(nil), b.parts...)
}
