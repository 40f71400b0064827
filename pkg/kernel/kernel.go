// Package kernel defines the solid-modelling backend behind the geometry
// kernel server. Implementations provide primitives, booleans, rigid
// transforms, signed-distance evaluation and tessellation; the server maps
// wire operations onto them and owns the shape handles.
package kernel

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
	// Distance returns the signed distance from p to the surface:
	// negative inside, positive outside.
	Distance(p [3]float64) float64
}

// Kernel is the solid-modelling backend.
type Kernel interface {
	// Primitives. Boxes and cylinders sit with their base at the origin;
	// spheres are centred on it.
	Box(x, y, z float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)
	Sphere(radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates s. cells is the resolution along the longest
	// bounding-box edge; zero selects the backend default.
	ToMesh(s Solid, cells int) (*Mesh, error)
}
