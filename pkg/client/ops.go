package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/protocol"
)

// Ops exposes a Client as geometry.Ops. Every call initialises the
// session first.
type Ops struct {
	c *Client
}

var _ geometry.Ops = (*Ops)(nil)

// NewOps wraps c.
func NewOps(c *Client) *Ops {
	return &Ops{c: c}
}

// Client returns the underlying client.
func (o *Ops) Client() *Client { return o.c }

func (o *Ops) call(ctx context.Context, op string, params, out any) error {
	if err := o.c.Initialize(ctx); err != nil {
		return err
	}
	raw, err := o.c.Compute(ctx, op, params, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", op, err)
	}
	return nil
}

func (o *Ops) shape(ctx context.Context, op string, params any) (geometry.ShapeID, error) {
	var res protocol.ShapeResult
	if err := o.call(ctx, op, params, &res); err != nil {
		return "", err
	}
	if res.ShapeID == "" {
		return "", fmt.Errorf("%s: kernel returned no shape id", op)
	}
	return geometry.ShapeID(res.ShapeID), nil
}

func vec(a [3]float64) geometry.Vec3 { return geometry.Vec3{X: a[0], Y: a[1], Z: a[2]} }

func arr(v geometry.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func (o *Ops) Box(ctx context.Context, x, y, z float64) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpBox, protocol.BoxParams{X: x, Y: y, Z: z})
}

func (o *Ops) Cylinder(ctx context.Context, height, radius float64) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpCylinder, protocol.CylinderParams{Height: height, Radius: radius})
}

func (o *Ops) Sphere(ctx context.Context, radius float64) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpSphere, protocol.SphereParams{Radius: radius})
}

func (o *Ops) Union(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpUnion, protocol.BinaryParams{A: string(a), B: string(b)})
}

func (o *Ops) Subtract(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpSubtract, protocol.BinaryParams{A: string(a), B: string(b)})
}

func (o *Ops) Intersect(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpIntersect, protocol.BinaryParams{A: string(a), B: string(b)})
}

func (o *Ops) Translate(ctx context.Context, s geometry.ShapeID, v geometry.Vec3) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpTranslate, protocol.TranslateParams{ShapeID: string(s), Offset: arr(v)})
}

func (o *Ops) Rotate(ctx context.Context, s geometry.ShapeID, euler geometry.Vec3) (geometry.ShapeID, error) {
	return o.shape(ctx, protocol.OpRotate, protocol.RotateParams{ShapeID: string(s), Euler: arr(euler)})
}

func (o *Ops) BoundingBox(ctx context.Context, s geometry.ShapeID) (geometry.Bounds, error) {
	var res protocol.BoundsResult
	if err := o.call(ctx, protocol.OpBoundingBox, protocol.ShapeParams{ShapeID: string(s)}, &res); err != nil {
		return geometry.Bounds{}, err
	}
	return geometry.Bounds{Min: vec(res.Min), Max: vec(res.Max)}, nil
}

func (o *Ops) MassProperties(ctx context.Context, s geometry.ShapeID) (geometry.MassProperties, error) {
	var res protocol.MassResult
	if err := o.call(ctx, protocol.OpMassProperties, protocol.ShapeParams{ShapeID: string(s)}, &res); err != nil {
		return geometry.MassProperties{}, err
	}
	return geometry.MassProperties{
		Volume:       res.Volume,
		SurfaceArea:  res.SurfaceArea,
		CenterOfMass: vec(res.CenterOfMass),
	}, nil
}

func (o *Ops) MeasureDistance(ctx context.Context, a, b geometry.ShapeID) (geometry.Distance, error) {
	var res protocol.DistanceResult
	if err := o.call(ctx, protocol.OpMeasureDistance, protocol.BinaryParams{A: string(a), B: string(b)}, &res); err != nil {
		return geometry.Distance{}, err
	}
	return geometry.Distance{Value: res.Distance, PointA: vec(res.PointA), PointB: vec(res.PointB)}, nil
}

func (o *Ops) Delete(ctx context.Context, s geometry.ShapeID) error {
	return o.call(ctx, protocol.OpDelete, protocol.ShapeParams{ShapeID: string(s)}, nil)
}

// Mesh fetches a triangle mesh of s for rendering or export.
func (o *Ops) Mesh(ctx context.Context, s geometry.ShapeID) (protocol.MeshResult, error) {
	var res protocol.MeshResult
	err := o.call(ctx, protocol.OpMesh, protocol.ShapeParams{ShapeID: string(s)}, &res)
	return res, err
}
