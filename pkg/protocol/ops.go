package protocol

// Parameter and result payloads of the compute operations. Vectors travel
// as [x, y, z] arrays in millimetres; angles in degrees.

type BoxParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type CylinderParams struct {
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`
}

type SphereParams struct {
	Radius float64 `json:"radius"`
}

// BinaryParams names the two operands of a boolean or a measurement.
type BinaryParams struct {
	A string `json:"a"`
	B string `json:"b"`
}

type TranslateParams struct {
	ShapeID string     `json:"shapeId"`
	Offset  [3]float64 `json:"offset"`
}

type RotateParams struct {
	ShapeID string     `json:"shapeId"`
	Euler   [3]float64 `json:"euler"`
}

// ShapeParams names a single shape.
type ShapeParams struct {
	ShapeID string `json:"shapeId"`
}

// ShapeResult is returned by every operation that creates a shape.
type ShapeResult struct {
	ShapeID string `json:"shapeId"`
}

type BoundsResult struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type MassResult struct {
	Volume       float64    `json:"volume"`
	SurfaceArea  float64    `json:"surfaceArea"`
	CenterOfMass [3]float64 `json:"centerOfMass"`
}

type DistanceResult struct {
	Distance float64    `json:"distance"`
	PointA   [3]float64 `json:"pointA"`
	PointB   [3]float64 `json:"pointB"`
}

type MeshResult struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
}
