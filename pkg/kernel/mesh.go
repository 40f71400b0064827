package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is a triangle mesh.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) r3.Vec {
	return r3.Vec{
		X: float64(m.Vertices[3*i]),
		Y: float64(m.Vertices[3*i+1]),
		Z: float64(m.Vertices[3*i+2]),
	}
}

// triangle returns the corners of triangle t.
func (m *Mesh) triangle(t int) (a, b, c r3.Vec) {
	return m.Vertex(int(m.Indices[3*t])),
		m.Vertex(int(m.Indices[3*t+1])),
		m.Vertex(int(m.Indices[3*t+2]))
}

// SurfaceArea sums the triangle areas.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.triangle(t)
		area += r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
	}
	return area
}

// VolumeCentroid returns the enclosed volume and its centroid, summing
// signed tetrahedra against the origin. The mesh must be closed; winding
// direction does not matter.
func (m *Mesh) VolumeCentroid() (float64, r3.Vec) {
	var vol float64
	var moment r3.Vec
	for t := 0; t < m.TriangleCount(); t++ {
		a, b, c := m.triangle(t)
		v := r3.Dot(a, r3.Cross(b, c)) / 6
		vol += v
		moment = r3.Add(moment, r3.Scale(v/4, r3.Add(a, r3.Add(b, c))))
	}
	if vol == 0 {
		return 0, r3.Vec{}
	}
	return math.Abs(vol), r3.Scale(1/vol, moment)
}

// Volume returns the enclosed volume.
func (m *Mesh) Volume() float64 {
	v, _ := m.VolumeCentroid()
	return v
}
