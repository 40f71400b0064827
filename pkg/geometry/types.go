// Package geometry defines the data model shared by the builders, the assembly
// composer and the validation engine: bounds, mass properties, materials,
// built components and assemblies. Geometry itself lives in the kernel; the
// values here only carry shape handles and measured properties.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in millimetres.
type Vec3 = r3.Vec

// ShapeID is an opaque handle into the kernel's shape registry.
type ShapeID string

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// Size returns the extent along each axis.
func (b Bounds) Size() Vec3 {
	return r3.Sub(b.Max, b.Min)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Vec3 {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Smallest returns the smallest extent of the box.
func (b Bounds) Smallest() float64 {
	s := b.Size()
	return math.Min(s.X, math.Min(s.Y, s.Z))
}

// Largest returns the largest extent of the box.
func (b Bounds) Largest() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// IsValid reports whether Min does not exceed Max on any axis.
// Flat boxes are valid.
func (b Bounds) IsValid() bool {
	return b.Min.X <= b.Max.X && b.Min.Y <= b.Max.Y && b.Min.Z <= b.Max.Z
}

// Union returns the component-wise min/max of the two boxes.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		Min: Vec3{X: math.Min(b.Min.X, o.Min.X), Y: math.Min(b.Min.Y, o.Min.Y), Z: math.Min(b.Min.Z, o.Min.Z)},
		Max: Vec3{X: math.Max(b.Max.X, o.Max.X), Y: math.Max(b.Max.Y, o.Max.Y), Z: math.Max(b.Max.Z, o.Max.Z)},
	}
}

// Transform places a component. Rotation holds Euler angles in degrees,
// applied about X, then Y, then Z.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
}

// Properties are the measured physical properties of a component.
type Properties struct {
	Volume       float64 `json:"volume"`       // mm³
	SurfaceArea  float64 `json:"surfaceArea"`  // mm²
	Weight       float64 `json:"weight"`       // kg
	CenterOfMass Vec3    `json:"centerOfMass"` // mm
}

// WeightFromVolume converts a volume in mm³ to kilograms for a density in kg/m³.
func WeightFromVolume(volumeMM3, density float64) float64 {
	return volumeMM3 / 1e9 * density
}

// GeometryResult is a single built component. It is created once by a
// builder's final step and treated as immutable afterwards.
type GeometryResult struct {
	ID          string         `json:"id"`
	ShapeID     ShapeID        `json:"shapeId"`
	Name        string         `json:"name"`
	ElementType string         `json:"elementType"`
	Bounds      Bounds         `json:"bounds"`
	Transform   Transform      `json:"transform"`
	Properties  Properties     `json:"properties"`
	Material    Material       `json:"material"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Float returns a numeric metadata field. Integer values are widened.
func (g *GeometryResult) Float(key string) (float64, bool) {
	if g == nil || g.Metadata == nil {
		return 0, false
	}
	switch v := g.Metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Label returns the name if set, otherwise the id.
func (g *GeometryResult) Label() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// ConnectionKind enumerates how two components meet.
type ConnectionKind string

const (
	ConnectionBolted  ConnectionKind = "bolted"
	ConnectionWelded  ConnectionKind = "welded"
	ConnectionBearing ConnectionKind = "bearing"
)

// Connection joins two components of an assembly at a point.
type Connection struct {
	From  string         `json:"from"` // component id
	To    string         `json:"to"`   // component id
	Kind  ConnectionKind `json:"kind"`
	Point Vec3           `json:"point"`
}

// ConnectionPoint is a located interface on an assembly.
type ConnectionPoint struct {
	Components []string       `json:"components"`
	Kind       ConnectionKind `json:"kind"`
	Position   Vec3           `json:"position"`
}

// AssemblyResult is a named collection of components with combined bounds,
// weight and validation state. It evolves by functional update: operations
// return a new value and never modify their input.
type AssemblyResult struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Components       []GeometryResult  `json:"components"`
	Connections      []Connection      `json:"connections,omitempty"`
	CombinedShapeID  ShapeID           `json:"combinedShapeId,omitempty"`
	Bounds           Bounds            `json:"bounds"`
	TotalWeight      float64           `json:"totalWeight"`
	ConnectionPoints []ConnectionPoint `json:"connectionPoints"`
	Validation       ValidationResult  `json:"validation"`
}

// Clone returns a copy whose slices can be appended to without aliasing a.
func (a *AssemblyResult) Clone() *AssemblyResult {
	c := *a
	c.Components = append([]GeometryResult(nil), a.Components...)
	c.Connections = append([]Connection(nil), a.Connections...)
	c.ConnectionPoints = append([]ConnectionPoint(nil), a.ConnectionPoints...)
	c.Validation = a.Validation.Clone()
	return &c
}
