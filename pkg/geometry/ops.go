package geometry

import "context"

// MassProperties is the kernel's answer to a mass-property query.
type MassProperties struct {
	Volume       float64 `json:"volume"`
	SurfaceArea  float64 `json:"surfaceArea"`
	CenterOfMass Vec3    `json:"centerOfMass"`
}

// Distance is the kernel's answer to a distance measurement. A negative
// value means the shapes overlap by about that depth.
type Distance struct {
	Value  float64 `json:"distance"`
	PointA Vec3    `json:"pointA"`
	PointB Vec3    `json:"pointB"`
}

// Ops is the typed surface of the geometry kernel consumed by builders,
// the assembly composer and the validation engine. Every call is one
// round-trip; results are fresh handles, inputs stay valid until deleted.
type Ops interface {
	// Primitives. Boxes have their minimum corner at the origin; cylinders
	// run along Z and spheres are centred on the origin.
	Box(ctx context.Context, x, y, z float64) (ShapeID, error)
	Cylinder(ctx context.Context, height, radius float64) (ShapeID, error)
	Sphere(ctx context.Context, radius float64) (ShapeID, error)

	// Booleans.
	Union(ctx context.Context, a, b ShapeID) (ShapeID, error)
	Subtract(ctx context.Context, a, b ShapeID) (ShapeID, error)
	Intersect(ctx context.Context, a, b ShapeID) (ShapeID, error)

	// Rigid transforms. Rotation is Euler degrees about X, then Y, then Z.
	Translate(ctx context.Context, s ShapeID, v Vec3) (ShapeID, error)
	Rotate(ctx context.Context, s ShapeID, euler Vec3) (ShapeID, error)

	// Queries.
	BoundingBox(ctx context.Context, s ShapeID) (Bounds, error)
	MassProperties(ctx context.Context, s ShapeID) (MassProperties, error)
	MeasureDistance(ctx context.Context, a, b ShapeID) (Distance, error)

	Delete(ctx context.Context, s ShapeID) error
}

// Obstacle is a fixed object in the surrounding environment that built
// components must keep clear of. When ShapeID is empty the obstacle is
// modelled as its bounding box.
type Obstacle struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ShapeID   ShapeID `json:"shapeId,omitempty"`
	Bounds    Bounds  `json:"bounds"`
	Clearance float64 `json:"clearance,omitempty"` // mm, 0 = engine default
}

// Environment describes the site a design is placed into.
type Environment struct {
	FloorLevel float64    `json:"floorLevel"`
	Obstacles  []Obstacle `json:"obstacles,omitempty"`
}

// Intent is one high-level element request: build an element of a given
// type between two points.
type Intent struct {
	ElementType string             `json:"elementType"`
	Name        string             `json:"name"`
	PointA      Vec3               `json:"pointA"`
	PointB      Vec3               `json:"pointB"`
	Material    string             `json:"material"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
}

// Design is a named set of intents placed into an environment.
type Design struct {
	Name        string       `json:"name"`
	Intents     []Intent     `json:"intents"`
	Environment Environment  `json:"environment"`
	Connections []Connection `json:"connections,omitempty"`
}
