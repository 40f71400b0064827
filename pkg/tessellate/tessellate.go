// Package tessellate fetches triangle meshes for the components of a built
// assembly and writes them out as STL. One mesh is produced per component.
package tessellate

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/kernel"
	"github.com/chazu/mayhem/pkg/protocol"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mesher meshes a kernel shape. *client.Ops implements it.
type Mesher interface {
	Mesh(ctx context.Context, s geometry.ShapeID) (protocol.MeshResult, error)
}

// Part is the mesh of one assembly component.
type Part struct {
	Name        string
	ElementType string
	Mesh        *kernel.Mesh
}

// Tessellate meshes every component of a in component order. The assembly
// is never mutated. Components without a shape are skipped.
func Tessellate(ctx context.Context, m Mesher, a *geometry.AssemblyResult) ([]Part, error) {
	if a == nil {
		return nil, nil
	}

	parts := make([]Part, 0, len(a.Components))
	for i := range a.Components {
		c := &a.Components[i]
		if c.ShapeID == "" {
			continue
		}
		res, err := m.Mesh(ctx, c.ShapeID)
		if err != nil {
			return nil, fmt.Errorf("tessellate: mesh %q: %w", c.Label(), err)
		}
		mesh := &kernel.Mesh{Vertices: res.Vertices, Normals: res.Normals, Indices: res.Indices}
		if err := check(mesh); err != nil {
			return nil, fmt.Errorf("tessellate: mesh %q: %w", c.Label(), err)
		}
		parts = append(parts, Part{Name: c.Label(), ElementType: c.ElementType, Mesh: mesh})
	}
	return parts, nil
}

// check rejects meshes whose indices point past the vertex array.
func check(m *kernel.Mesh) error {
	if len(m.Vertices)%3 != 0 || len(m.Indices)%3 != 0 {
		return fmt.Errorf("malformed mesh: %d floats, %d indices", len(m.Vertices), len(m.Indices))
	}
	n := uint32(m.VertexCount())
	for _, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("index %d out of range (%d vertices)", idx, n)
		}
	}
	return nil
}

// TriangleCount sums the triangles of parts.
func TriangleCount(parts []Part) int {
	var n int
	for _, p := range parts {
		n += p.Mesh.TriangleCount()
	}
	return n
}

// ----------------------------------------------------------------------------
// STL

const stlHeaderSize = 80

// WriteSTL writes parts as a single binary STL solid. Facet normals are
// computed from the triangle winding.
func WriteSTL(w io.Writer, name string, parts []Part) error {
	bw := bufio.NewWriter(w)

	var header [stlHeaderSize]byte
	copy(header[:], "mayhem "+name)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}

	total := TriangleCount(parts)
	if uint64(total) > math.MaxUint32 {
		return fmt.Errorf("write stl: %d triangles exceed the format limit", total)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(total)); err != nil {
		return fmt.Errorf("write stl: %w", err)
	}

	// normal, three vertices, attribute byte count
	var facet [12]float32
	for _, p := range parts {
		m := p.Mesh
		for t := 0; t < m.TriangleCount(); t++ {
			a := m.Vertex(int(m.Indices[3*t]))
			b := m.Vertex(int(m.Indices[3*t+1]))
			c := m.Vertex(int(m.Indices[3*t+2]))
			n := facetNormal(a, b, c)
			for i, v := range []r3.Vec{n, a, b, c} {
				facet[3*i] = float32(v.X)
				facet[3*i+1] = float32(v.Y)
				facet[3*i+2] = float32(v.Z)
			}
			if err := binary.Write(bw, binary.LittleEndian, facet); err != nil {
				return fmt.Errorf("write stl %q: %w", p.Name, err)
			}
			if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
				return fmt.Errorf("write stl %q: %w", p.Name, err)
			}
		}
	}
	return bw.Flush()
}

func facetNormal(a, b, c r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if r3.Norm(n) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(n)
}
