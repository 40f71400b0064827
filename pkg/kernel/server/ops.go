package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/chazu/mayhem/pkg/kernel"
	"github.com/chazu/mayhem/pkg/protocol"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyIntersection is returned when two solids share no volume.
var ErrEmptyIntersection = errors.New("empty intersection")

// ProgressFunc reports intermediate progress (0-100).
type ProgressFunc func(float64)

type opFunc func(s *Server, ctx context.Context, params json.RawMessage, progress ProgressFunc) (any, error)

var operations = map[string]opFunc{
	protocol.OpBox:             (*Server).opBox,
	protocol.OpCylinder:        (*Server).opCylinder,
	protocol.OpSphere:          (*Server).opSphere,
	protocol.OpUnion:           (*Server).opUnion,
	protocol.OpSubtract:        (*Server).opSubtract,
	protocol.OpIntersect:       (*Server).opIntersect,
	protocol.OpTranslate:       (*Server).opTranslate,
	protocol.OpRotate:          (*Server).opRotate,
	protocol.OpBoundingBox:     (*Server).opBoundingBox,
	protocol.OpMassProperties:  (*Server).opMassProperties,
	protocol.OpMeasureDistance: (*Server).opMeasureDistance,
	protocol.OpMesh:            (*Server).opMesh,
	protocol.OpDelete:          (*Server).opDelete,
}

// Execute runs one named operation. progress may be nil.
func (s *Server) Execute(ctx context.Context, op string, params json.RawMessage, progress ProgressFunc) (any, error) {
	fn, ok := operations[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}
	if progress == nil {
		progress = func(float64) {}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fn(s, ctx, params, progress)
}

func decode[T any](op string, raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, fmt.Errorf("%s: missing params", op)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%s: decode params: %w", op, err)
	}
	return v, nil
}

func (s *Server) created(solid kernel.Solid, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return protocol.ShapeResult{ShapeID: s.store(solid)}, nil
}

// ----------------------------------------------------------------------------
// Primitives
// ----------------------------------------------------------------------------

func (s *Server) opBox(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	p, err := decode[protocol.BoxParams](protocol.OpBox, raw)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Box(p.X, p.Y, p.Z))
}

func (s *Server) opCylinder(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	p, err := decode[protocol.CylinderParams](protocol.OpCylinder, raw)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Cylinder(p.Height, p.Radius))
}

func (s *Server) opSphere(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	p, err := decode[protocol.SphereParams](protocol.OpSphere, raw)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Sphere(p.Radius))
}

// ----------------------------------------------------------------------------
// Booleans and transforms
// ----------------------------------------------------------------------------

func (s *Server) operands(op string, raw json.RawMessage) (kernel.Solid, kernel.Solid, error) {
	p, err := decode[protocol.BinaryParams](op, raw)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.lookup(p.A)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.lookup(p.B)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (s *Server) opUnion(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	a, b, err := s.operands(protocol.OpUnion, raw)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Union(a, b), nil)
}

func (s *Server) opSubtract(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	a, b, err := s.operands(protocol.OpSubtract, raw)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Difference(a, b), nil)
}

// opIntersect fails when the operands share no volume, so callers can
// treat a returned handle as a real overlap.
func (s *Server) opIntersect(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	a, b, err := s.operands(protocol.OpIntersect, raw)
	if err != nil {
		return nil, err
	}
	if !boxesOverlap(a, b) {
		return nil, ErrEmptyIntersection
	}
	return s.created(s.k.Intersection(a, b), nil)
}

func boxesOverlap(a, b kernel.Solid) bool {
	amin, amax := a.BoundingBox()
	bmin, bmax := b.BoundingBox()
	for i := 0; i < 3; i++ {
		if amax[i] <= bmin[i] || bmax[i] <= amin[i] {
			return false
		}
	}
	return true
}

func (s *Server) opTranslate(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	p, err := decode[protocol.TranslateParams](protocol.OpTranslate, raw)
	if err != nil {
		return nil, err
	}
	solid, err := s.lookup(p.ShapeID)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Translate(solid, p.Offset[0], p.Offset[1], p.Offset[2]), nil)
}

func (s *Server) opRotate(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	p, err := decode[protocol.RotateParams](protocol.OpRotate, raw)
	if err != nil {
		return nil, err
	}
	solid, err := s.lookup(p.ShapeID)
	if err != nil {
		return nil, err
	}
	return s.created(s.k.Rotate(solid, p.Euler[0], p.Euler[1], p.Euler[2]), nil)
}

// ----------------------------------------------------------------------------
// Queries
// ----------------------------------------------------------------------------

func (s *Server) shape(op string, raw json.RawMessage) (kernel.Solid, string, error) {
	p, err := decode[protocol.ShapeParams](op, raw)
	if err != nil {
		return nil, "", err
	}
	solid, err := s.lookup(p.ShapeID)
	return solid, p.ShapeID, err
}

func (s *Server) opBoundingBox(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	solid, _, err := s.shape(protocol.OpBoundingBox, raw)
	if err != nil {
		return nil, err
	}
	min, max := solid.BoundingBox()
	return protocol.BoundsResult{Min: min, Max: max}, nil
}

func (s *Server) mesh(ctx context.Context, solid kernel.Solid) (*kernel.Mesh, error) {
	m, err := s.k.ToMesh(solid, s.meshCells)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Server) opMassProperties(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (any, error) {
	solid, _, err := s.shape(protocol.OpMassProperties, raw)
	if err != nil {
		return nil, err
	}
	progress(0)
	m, err := s.mesh(ctx, solid)
	if err != nil {
		return nil, err
	}
	progress(80)
	vol, com := m.VolumeCentroid()
	return protocol.MassResult{
		Volume:       vol,
		SurfaceArea:  m.SurfaceArea(),
		CenterOfMass: [3]float64{com.X, com.Y, com.Z},
	}, nil
}

// opMeasureDistance samples the surface of each solid against the other's
// distance field. The minimum is the separation; a negative minimum is the
// penetration depth of an overlap.
func (s *Server) opMeasureDistance(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (any, error) {
	a, b, err := s.operands(protocol.OpMeasureDistance, raw)
	if err != nil {
		return nil, err
	}
	progress(0)
	ma, err := s.mesh(ctx, a)
	if err != nil {
		return nil, err
	}
	progress(40)
	mb, err := s.mesh(ctx, b)
	if err != nil {
		return nil, err
	}
	progress(80)

	dab, pa := closestSample(ma, b)
	dba, pb := closestSample(mb, a)
	if dab <= dba {
		return protocol.DistanceResult{Distance: dab, PointA: arr(pa), PointB: arr(project(b, pa, dab))}, nil
	}
	return protocol.DistanceResult{Distance: dba, PointA: arr(project(a, pb, dba)), PointB: arr(pb)}, nil
}

// closestSample returns the mesh vertex with the smallest signed distance
// to other, and that distance.
func closestSample(m *kernel.Mesh, other kernel.Solid) (float64, r3.Vec) {
	best, at := math.Inf(1), r3.Vec{}
	for i := 0; i < m.VertexCount(); i++ {
		v := m.Vertex(i)
		if d := other.Distance(arr(v)); d < best {
			best, at = d, v
		}
	}
	return best, at
}

// project moves p by its signed distance d against the gradient of s's
// field, landing on s's surface.
func project(s kernel.Solid, p r3.Vec, d float64) r3.Vec {
	field := func(v r3.Vec) float64 { return s.Distance(arr(v)) }
	const h = 1e-3
	g := r3.Gradient(p, r3.Vec{X: h, Y: h, Z: h}, field)
	if r3.Norm(g) == 0 {
		return p
	}
	return r3.Sub(p, r3.Scale(d, r3.Unit(g)))
}

func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func (s *Server) opMesh(ctx context.Context, raw json.RawMessage, progress ProgressFunc) (any, error) {
	solid, _, err := s.shape(protocol.OpMesh, raw)
	if err != nil {
		return nil, err
	}
	progress(0)
	m, err := s.mesh(ctx, solid)
	if err != nil {
		return nil, err
	}
	return protocol.MeshResult{Vertices: m.Vertices, Normals: m.Normals, Indices: m.Indices}, nil
}

func (s *Server) opDelete(_ context.Context, raw json.RawMessage, _ ProgressFunc) (any, error) {
	_, id, err := s.shape(protocol.OpDelete, raw)
	if err != nil {
		return nil, err
	}
	return nil, s.remove(id)
}
