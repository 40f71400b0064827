// Package geomtest provides an in-memory geometry.Ops for tests. Shapes are
// modelled by their axis-aligned bounds, which is enough to exercise call
// ordering, handle bookkeeping, clearance and interference logic without a
// real kernel.
package geomtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chazu/mayhem/pkg/geometry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Operation names used for call counting and failure injection.
const (
	OpBox             = "box"
	OpCylinder        = "cylinder"
	OpSphere          = "sphere"
	OpUnion           = "union"
	OpSubtract        = "subtract"
	OpIntersect       = "intersect"
	OpTranslate       = "translate"
	OpRotate          = "rotate"
	OpBoundingBox     = "boundingBox"
	OpMassProperties  = "massProperties"
	OpMeasureDistance = "measureDistance"
	OpDelete          = "delete"
)

// ErrEmptyIntersection is returned by Intersect for disjoint shapes.
var ErrEmptyIntersection = errors.New("empty intersection")

// Shape is the fake kernel's model of a solid.
type Shape struct {
	Bounds geometry.Bounds
	Volume float64
	Area   float64
}

// Ops is a thread-safe fake kernel.
type Ops struct {
	mu      sync.Mutex
	seq     int
	shapes  map[geometry.ShapeID]Shape
	calls   map[string]int
	order   []string
	deleted []geometry.ShapeID

	// Fail makes every call of the named operation return the error.
	Fail map[string]error
	// DistanceFunc overrides MeasureDistance when set.
	DistanceFunc func(a, b geometry.ShapeID) (geometry.Distance, error)
}

var _ geometry.Ops = (*Ops)(nil)

// New returns an empty fake kernel.
func New() *Ops {
	return &Ops{
		shapes: make(map[geometry.ShapeID]Shape),
		calls:  make(map[string]int),
		Fail:   make(map[string]error),
	}
}

// Add registers a solid box with the given bounds and returns its handle.
func (o *Ops) Add(b geometry.Bounds) geometry.ShapeID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store(boxShape(b))
}

// Shape returns the model behind id.
func (o *Ops) Shape(id geometry.ShapeID) (Shape, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.shapes[id]
	return s, ok
}

// Calls returns how many times op was invoked.
func (o *Ops) Calls(op string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[op]
}

// TotalCalls returns the number of kernel calls of any kind.
func (o *Ops) TotalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.order)
}

// Order returns the operation names in call order.
func (o *Ops) Order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}

// Deleted returns the handles passed to Delete.
func (o *Ops) Deleted() []geometry.ShapeID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]geometry.ShapeID(nil), o.deleted...)
}

// Live returns how many shapes are currently held.
func (o *Ops) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.shapes)
}

func boxShape(b geometry.Bounds) Shape {
	s := b.Size()
	return Shape{
		Bounds: b,
		Volume: s.X * s.Y * s.Z,
		Area:   2 * (s.X*s.Y + s.Y*s.Z + s.X*s.Z),
	}
}

// begin records the call and reports an injected failure. Callers hold mu.
func (o *Ops) begin(ctx context.Context, op string) error {
	o.calls[op]++
	o.order = append(o.order, op)
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.Fail[op]
}

func (o *Ops) store(s Shape) geometry.ShapeID {
	o.seq++
	id := geometry.ShapeID(fmt.Sprintf("f%d", o.seq))
	o.shapes[id] = s
	return id
}

func (o *Ops) get(id geometry.ShapeID) (Shape, error) {
	s, ok := o.shapes[id]
	if !ok {
		return Shape{}, fmt.Errorf("unknown shape %q", id)
	}
	return s, nil
}

func (o *Ops) primitive(ctx context.Context, op string, b geometry.Bounds, volume, area float64) (geometry.ShapeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, op); err != nil {
		return "", err
	}
	s := b.Size()
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return "", fmt.Errorf("%s: dimensions must be positive", op)
	}
	return o.store(Shape{Bounds: b, Volume: volume, Area: area}), nil
}

func (o *Ops) Box(ctx context.Context, x, y, z float64) (geometry.ShapeID, error) {
	b := geometry.Bounds{Max: geometry.Vec3{X: x, Y: y, Z: z}}
	return o.primitive(ctx, OpBox, b, x*y*z, 2*(x*y+y*z+x*z))
}

func (o *Ops) Cylinder(ctx context.Context, height, radius float64) (geometry.ShapeID, error) {
	b := geometry.Bounds{
		Min: geometry.Vec3{X: -radius, Y: -radius},
		Max: geometry.Vec3{X: radius, Y: radius, Z: height},
	}
	return o.primitive(ctx, OpCylinder, b, math.Pi*radius*radius*height, 2*math.Pi*radius*(radius+height))
}

func (o *Ops) Sphere(ctx context.Context, radius float64) (geometry.ShapeID, error) {
	b := geometry.Bounds{
		Min: geometry.Vec3{X: -radius, Y: -radius, Z: -radius},
		Max: geometry.Vec3{X: radius, Y: radius, Z: radius},
	}
	return o.primitive(ctx, OpSphere, b, 4.0/3*math.Pi*radius*radius*radius, 4*math.Pi*radius*radius)
}

func (o *Ops) binary(ctx context.Context, op string, a, b geometry.ShapeID, f func(sa, sb Shape) (Shape, error)) (geometry.ShapeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, op); err != nil {
		return "", err
	}
	sa, err := o.get(a)
	if err != nil {
		return "", err
	}
	sb, err := o.get(b)
	if err != nil {
		return "", err
	}
	s, err := f(sa, sb)
	if err != nil {
		return "", err
	}
	return o.store(s), nil
}

// Union sums volumes and areas; overlap is ignored.
func (o *Ops) Union(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.binary(ctx, OpUnion, a, b, func(sa, sb Shape) (Shape, error) {
		return Shape{Bounds: sa.Bounds.Union(sb.Bounds), Volume: sa.Volume + sb.Volume, Area: sa.Area + sb.Area}, nil
	})
}

// Subtract keeps the first shape's bounds and removes the overlap volume.
func (o *Ops) Subtract(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.binary(ctx, OpSubtract, a, b, func(sa, sb Shape) (Shape, error) {
		v := sa.Volume
		if ib, ok := intersection(sa.Bounds, sb.Bounds); ok {
			v -= boxShape(ib).Volume
		}
		return Shape{Bounds: sa.Bounds, Volume: math.Max(v, 0), Area: sa.Area}, nil
	})
}

// Intersect returns the overlap of the two bounds.
func (o *Ops) Intersect(ctx context.Context, a, b geometry.ShapeID) (geometry.ShapeID, error) {
	return o.binary(ctx, OpIntersect, a, b, func(sa, sb Shape) (Shape, error) {
		ib, ok := intersection(sa.Bounds, sb.Bounds)
		if !ok {
			return Shape{}, ErrEmptyIntersection
		}
		return boxShape(ib), nil
	})
}

func intersection(a, b geometry.Bounds) (geometry.Bounds, bool) {
	ib := geometry.Bounds{
		Min: geometry.Vec3{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y), Z: math.Max(a.Min.Z, b.Min.Z)},
		Max: geometry.Vec3{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y), Z: math.Min(a.Max.Z, b.Max.Z)},
	}
	return ib, ib.IsValid()
}

func (o *Ops) unary(ctx context.Context, op string, id geometry.ShapeID, f func(Shape) Shape) (geometry.ShapeID, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, op); err != nil {
		return "", err
	}
	s, err := o.get(id)
	if err != nil {
		return "", err
	}
	return o.store(f(s)), nil
}

func (o *Ops) Translate(ctx context.Context, id geometry.ShapeID, v geometry.Vec3) (geometry.ShapeID, error) {
	return o.unary(ctx, OpTranslate, id, func(s Shape) Shape {
		s.Bounds = geometry.Bounds{Min: r3.Add(s.Bounds.Min, v), Max: r3.Add(s.Bounds.Max, v)}
		return s
	})
}

// Rotate turns the eight corners of the bounds about the origin, X then Y
// then Z, and keeps their bounding box.
func (o *Ops) Rotate(ctx context.Context, id geometry.ShapeID, euler geometry.Vec3) (geometry.ShapeID, error) {
	return o.unary(ctx, OpRotate, id, func(s Shape) Shape {
		s.Bounds = RotateBounds(s.Bounds, euler)
		return s
	})
}

// RotateBounds rotates b by Euler degrees about X, then Y, then Z and
// returns the axis-aligned box around the result.
func RotateBounds(b geometry.Bounds, euler geometry.Vec3) geometry.Bounds {
	inf := math.Inf(1)
	out := geometry.Bounds{
		Min: geometry.Vec3{X: inf, Y: inf, Z: inf},
		Max: geometry.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
	for i := 0; i < 8; i++ {
		p := geometry.Vec3{X: b.Min.X, Y: b.Min.Y, Z: b.Min.Z}
		if i&1 != 0 {
			p.X = b.Max.X
		}
		if i&2 != 0 {
			p.Y = b.Max.Y
		}
		if i&4 != 0 {
			p.Z = b.Max.Z
		}
		p = r3.Rotate(p, euler.X*math.Pi/180, r3.Vec{X: 1})
		p = r3.Rotate(p, euler.Y*math.Pi/180, r3.Vec{Y: 1})
		p = r3.Rotate(p, euler.Z*math.Pi/180, r3.Vec{Z: 1})
		out = out.Union(geometry.Bounds{Min: p, Max: p})
	}
	return out
}

func (o *Ops) BoundingBox(ctx context.Context, id geometry.ShapeID) (geometry.Bounds, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, OpBoundingBox); err != nil {
		return geometry.Bounds{}, err
	}
	s, err := o.get(id)
	if err != nil {
		return geometry.Bounds{}, err
	}
	return s.Bounds, nil
}

func (o *Ops) MassProperties(ctx context.Context, id geometry.ShapeID) (geometry.MassProperties, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, OpMassProperties); err != nil {
		return geometry.MassProperties{}, err
	}
	s, err := o.get(id)
	if err != nil {
		return geometry.MassProperties{}, err
	}
	return geometry.MassProperties{Volume: s.Volume, SurfaceArea: s.Area, CenterOfMass: s.Bounds.Center()}, nil
}

// MeasureDistance returns the gap between the two bounds, or minus the
// smallest overlap depth when they overlap.
func (o *Ops) MeasureDistance(ctx context.Context, a, b geometry.ShapeID) (geometry.Distance, error) {
	o.mu.Lock()
	if err := o.begin(ctx, OpMeasureDistance); err != nil {
		o.mu.Unlock()
		return geometry.Distance{}, err
	}
	if f := o.DistanceFunc; f != nil {
		o.mu.Unlock()
		return f(a, b)
	}
	defer o.mu.Unlock()
	sa, err := o.get(a)
	if err != nil {
		return geometry.Distance{}, err
	}
	sb, err := o.get(b)
	if err != nil {
		return geometry.Distance{}, err
	}
	return BoundsDistance(sa.Bounds, sb.Bounds), nil
}

// BoundsDistance is the signed distance between two boxes.
func BoundsDistance(a, b geometry.Bounds) geometry.Distance {
	gap := func(aMin, aMax, bMin, bMax float64) float64 {
		return math.Max(bMin-aMax, aMin-bMax)
	}
	gx := gap(a.Min.X, a.Max.X, b.Min.X, b.Max.X)
	gy := gap(a.Min.Y, a.Max.Y, b.Min.Y, b.Max.Y)
	gz := gap(a.Min.Z, a.Max.Z, b.Min.Z, b.Max.Z)

	var d float64
	if gx < 0 && gy < 0 && gz < 0 {
		d = math.Max(gx, math.Max(gy, gz))
	} else {
		d = math.Sqrt(sq(math.Max(gx, 0)) + sq(math.Max(gy, 0)) + sq(math.Max(gz, 0)))
	}
	clamp := func(p geometry.Vec3, bb geometry.Bounds) geometry.Vec3 {
		return geometry.Vec3{
			X: math.Max(bb.Min.X, math.Min(bb.Max.X, p.X)),
			Y: math.Max(bb.Min.Y, math.Min(bb.Max.Y, p.Y)),
			Z: math.Max(bb.Min.Z, math.Min(bb.Max.Z, p.Z)),
		}
	}
	pa := clamp(b.Center(), a)
	return geometry.Distance{Value: d, PointA: pa, PointB: clamp(pa, b)}
}

func sq(v float64) float64 { return v * v }

func (o *Ops) Delete(ctx context.Context, id geometry.ShapeID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.begin(ctx, OpDelete); err != nil {
		return err
	}
	if _, err := o.get(id); err != nil {
		return err
	}
	delete(o.shapes, id)
	o.deleted = append(o.deleted, id)
	return nil
}
