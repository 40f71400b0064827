package sdfx

import (
	"math"
	"testing"

	"github.com/chazu/mayhem/pkg/kernel"
	"go.uber.org/goleak"
)

func mustBox(t *testing.T, k *SdfxKernel, x, y, z float64) kernel.Solid {
	t.Helper()
	s, err := k.Box(x, y, z)
	if err != nil {
		t.Fatalf("Box(%g, %g, %g): %v", x, y, z, err)
	}
	return s
}

func assertBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64, tol float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 100, 50, 25)
	mesh, err := k.ToMesh(box, 0)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	triCount := mesh.TriangleCount()
	if triCount == 0 {
		t.Fatal("expected non-zero triangle count")
	}
	if len(mesh.Vertices) != len(mesh.Normals) {
		t.Fatalf("vertices length %d != normals length %d", len(mesh.Vertices), len(mesh.Normals))
	}
	if len(mesh.Indices) != triCount*3 {
		t.Fatalf("indices length %d != triCount*3 %d", len(mesh.Indices), triCount*3)
	}
}

func TestBoxRejectsNonPositive(t *testing.T) {
	k := New(0)
	if _, err := k.Box(0, 10, 10); err == nil {
		t.Error("Box with zero width should fail")
	}
	if _, err := k.Cylinder(10, -1); err == nil {
		t.Error("Cylinder with negative radius should fail")
	}
	if _, err := k.Sphere(0); err == nil {
		t.Error("Sphere with zero radius should fail")
	}
}

func TestBoxBoundingBoxAtOrigin(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 100, 50, 25)
	assertBounds(t, box, [3]float64{0, 0, 0}, [3]float64{100, 50, 25}, 0.01)
}

func TestCylinderSitsOnOrigin(t *testing.T) {
	k := New(0)
	cyl, err := k.Cylinder(50, 10)
	if err != nil {
		t.Fatal(err)
	}
	assertBounds(t, cyl, [3]float64{-10, -10, 0}, [3]float64{10, 10, 50}, 0.01)
}

func TestSphereDistance(t *testing.T) {
	k := New(0)
	s, err := k.Sphere(10)
	if err != nil {
		t.Fatal(err)
	}
	if d := s.Distance([3]float64{25, 0, 0}); math.Abs(d-15) > 1e-6 {
		t.Errorf("outside distance = %f, want 15", d)
	}
	if d := s.Distance([3]float64{0, 0, 0}); math.Abs(d+10) > 1e-6 {
		t.Errorf("centre distance = %f, want -10", d)
	}
}

func TestBoxVolumeFromMesh(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 100, 50, 25)
	mesh, err := k.ToMesh(box, 0)
	if err != nil {
		t.Fatal(err)
	}
	vol, com := mesh.VolumeCentroid()
	want := 100.0 * 50 * 25
	if math.Abs(vol-want)/want > 0.05 {
		t.Errorf("volume = %f, expected within 5%% of %f", vol, want)
	}
	if math.Abs(com.X-50) > 1 || math.Abs(com.Y-25) > 1 || math.Abs(com.Z-12.5) > 1 {
		t.Errorf("centroid = %v, expected ~(50, 25, 12.5)", com)
	}
}

func TestDifference(t *testing.T) {
	k := New(0)

	box := mustBox(t, k, 100, 100, 100)
	cyl, err := k.Cylinder(120, 20)
	if err != nil {
		t.Fatal(err)
	}
	cyl = k.Translate(cyl, 50, 50, -10)

	boxMesh, err := k.ToMesh(box, 0)
	if err != nil {
		t.Fatalf("ToMesh(box) failed: %v", err)
	}
	diffMesh, err := k.ToMesh(k.Difference(box, cyl), 0)
	if err != nil {
		t.Fatalf("ToMesh(diff) failed: %v", err)
	}
	// A hole removes material.
	if diffMesh.Volume() >= boxMesh.Volume() {
		t.Fatalf("difference volume %f should be below box volume %f",
			diffMesh.Volume(), boxMesh.Volume())
	}
}

func TestUnion(t *testing.T) {
	k := New(0)
	box1 := mustBox(t, k, 50, 50, 50)
	box2 := k.Translate(mustBox(t, k, 50, 50, 50), 30, 0, 0)
	u := k.Union(box1, box2)
	assertBounds(t, u, [3]float64{0, 0, 0}, [3]float64{80, 50, 50}, 0.01)
	mesh, err := k.ToMesh(u, 0)
	if err != nil {
		t.Fatalf("ToMesh failed: %v", err)
	}
	if mesh.IsEmpty() {
		t.Fatal("union mesh is empty")
	}
}

func TestTranslate(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 10, 10, 10)
	translated := k.Translate(box, 100, 200, 300)
	assertBounds(t, translated, [3]float64{100, 200, 300}, [3]float64{110, 210, 310}, 0.5)
}

func TestIntersection(t *testing.T) {
	k := New(0)
	box1 := mustBox(t, k, 100, 100, 100)
	box2 := k.Translate(mustBox(t, k, 100, 100, 100), 50, 0, 0)
	inter := k.Intersection(box1, box2)
	if d := inter.Distance([3]float64{75, 50, 50}); d >= 0 {
		t.Errorf("point in the overlap should be inside, distance = %f", d)
	}
	if d := inter.Distance([3]float64{25, 50, 50}); d <= 0 {
		t.Errorf("point only in the first box should be outside, distance = %f", d)
	}
}

func TestRotate(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 100, 10, 10)

	// A long box along X rotated 90 degrees around Z should extend along Y instead.
	rotated := k.Rotate(box, 0, 0, 90)
	min, max := rotated.BoundingBox()

	xExtent := max[0] - min[0]
	yExtent := max[1] - min[1]

	const tol = 1.0
	if math.Abs(xExtent-10) > tol {
		t.Errorf("rotated X extent = %f, expected ~10", xExtent)
	}
	if math.Abs(yExtent-100) > tol {
		t.Errorf("rotated Y extent = %f, expected ~100", yExtent)
	}
}

func TestMeshCellsForSlenderSolid(t *testing.T) {
	k := New(0)
	beam := mustBox(t, k, 6000, 100, 100)
	if got := k.meshCells(beam); got != 240 {
		t.Errorf("meshCells(6m beam) = %d, want 240", got)
	}
	long := mustBox(t, k, 10000, 100, 100)
	if got := k.meshCells(long); got != maxMeshCells {
		t.Errorf("meshCells(10m beam) = %d, want %d", got, maxMeshCells)
	}
	cube := mustBox(t, k, 100, 100, 100)
	if got := k.meshCells(cube); got != DefaultMeshCells {
		t.Errorf("meshCells(cube) = %d, want %d", got, DefaultMeshCells)
	}
}

func TestToMeshLeavesNoGoroutines(t *testing.T) {
	k := New(0)
	box := mustBox(t, k, 50, 50, 50)
	for i := 0; i < 3; i++ {
		if _, err := k.ToMesh(box, 16); err != nil {
			t.Fatalf("ToMesh: %v", err)
		}
	}
	goleak.VerifyNone(t)
}
