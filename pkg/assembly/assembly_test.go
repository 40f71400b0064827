package assembly

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/geometry/geomtest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// component registers a box with the fake kernel and wraps it as a built
// component.
func component(ops *geomtest.Ops, id string, min, max geometry.Vec3, weight float64) geometry.GeometryResult {
	b := geometry.Bounds{Min: min, Max: max}
	return geometry.GeometryResult{
		ID:          id,
		Name:        id + "-name",
		ShapeID:     ops.Add(b),
		ElementType: "beam",
		Bounds:      b,
		Properties:  geometry.Properties{Weight: weight},
	}
}

func cube(ops *geomtest.Ops, id string, x float64) geometry.GeometryResult {
	return component(ops, id, geometry.Vec3{X: x}, geometry.Vec3{X: x + 100, Y: 100, Z: 100}, 10)
}

func TestBuildAssemblyEmpty(t *testing.T) {
	b := New(geomtest.New())
	_, err := b.BuildAssembly(context.Background(), "empty", nil, nil)
	require.ErrorIs(t, err, ErrEmptyAssembly)
	assert.Contains(t, err.Error(), "assembly has no components")
}

func TestBuildAssemblyBoundsAndWeight(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)
	comps := []geometry.GeometryResult{
		component(ops, "a", geometry.Vec3{X: -100, Y: 0, Z: 0}, geometry.Vec3{X: 0, Y: 50, Z: 50}, 12.5),
		component(ops, "b", geometry.Vec3{X: 500, Y: -20, Z: 10}, geometry.Vec3{X: 600, Y: 30, Z: 900}, 7.5),
	}
	a, err := b.BuildAssembly(context.Background(), "frame", comps, nil)
	require.NoError(t, err)

	want := geometry.Bounds{Min: geometry.Vec3{X: -100, Y: -20, Z: 0}, Max: geometry.Vec3{X: 600, Y: 50, Z: 900}}
	if diff := cmp.Diff(want, a.Bounds); diff != "" {
		t.Errorf("bounds mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 20.0, a.TotalWeight)
	assert.NotEmpty(t, a.ID)
	assert.Empty(t, a.ConnectionPoints)
	assert.True(t, a.Validation.Valid)
	assert.Len(t, a.Validation.ClearanceChecks, 1)
}

func TestBuildAssemblyConnectionPoints(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)
	comps := []geometry.GeometryResult{cube(ops, "a", 0), cube(ops, "b", 200)}
	conns := []geometry.Connection{
		{From: "a", To: "b-name", Kind: geometry.ConnectionBolted, Point: geometry.Vec3{X: 150}},
		{From: "a", To: "ghost", Kind: geometry.ConnectionWelded},
	}
	a, err := b.BuildAssembly(context.Background(), "pair", comps, conns)
	require.NoError(t, err)

	want := []geometry.ConnectionPoint{{
		Components: []string{"a", "b"},
		Kind:       geometry.ConnectionBolted,
		Position:   geometry.Vec3{X: 150},
	}}
	if diff := cmp.Diff(want, a.ConnectionPoints); diff != "" {
		t.Errorf("connection points mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAssemblyClassification(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		errors   []string
		warnings []string
	}{
		{"overlapping", -2, []string{geometry.CodeInterference}, nil},
		{"touching", 0, nil, []string{geometry.CodeLowClearance}},
		{"close", 0.5, nil, []string{geometry.CodeLowClearance}},
		{"clear", 50, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := geomtest.New()
			ops.DistanceFunc = func(_, _ geometry.ShapeID) (geometry.Distance, error) {
				return geometry.Distance{Value: tt.distance}, nil
			}
			b := New(ops)
			a, err := b.BuildAssembly(context.Background(), tt.name,
				[]geometry.GeometryResult{cube(ops, "g1", 0), cube(ops, "g2", 500)}, nil)
			require.NoError(t, err)

			v := a.Validation
			assert.Equal(t, len(tt.errors) == 0, v.Valid)
			codes := func(is []geometry.ValidationIssue) []string {
				var out []string
				for _, i := range is {
					out = append(out, i.Code)
				}
				return out
			}
			assert.Equal(t, tt.errors, codes(v.Errors))
			assert.Equal(t, tt.warnings, codes(v.Warnings))
			for _, i := range append(v.Errors, v.Warnings...) {
				assert.ElementsMatch(t, []string{"g1", "g2"}, i.AffectedComponents)
			}
			require.Len(t, v.ClearanceChecks, 1)
			assert.Equal(t, tt.distance, v.ClearanceChecks[0].MinDistance)
			assert.Equal(t, tt.distance >= DefaultLowClearance, v.ClearanceChecks[0].Passed)
		})
	}
}

func TestValidateAssemblyMeasurementFailureIsWarning(t *testing.T) {
	ops := geomtest.New()
	ops.Fail[geomtest.OpMeasureDistance] = errors.New("kernel timeout")
	b := New(ops)
	a, err := b.BuildAssembly(context.Background(), "flaky",
		[]geometry.GeometryResult{cube(ops, "g1", 0), cube(ops, "g2", 500)}, nil)
	require.NoError(t, err)

	assert.True(t, a.Validation.Valid)
	require.Len(t, a.Validation.Warnings, 1)
	assert.Equal(t, geometry.CodeMeasurementFailed, a.Validation.Warnings[0].Code)
	assert.Empty(t, a.Validation.ClearanceChecks)
}

func TestCombineComponents(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)

	single, err := b.BuildAssembly(context.Background(), "one", []geometry.GeometryResult{cube(ops, "g", 0)}, nil)
	require.NoError(t, err)
	combined, err := b.CombineComponents(context.Background(), single)
	require.NoError(t, err)
	assert.Equal(t, single.Components[0].ShapeID, combined.CombinedShapeID)
	assert.Zero(t, ops.Calls(geomtest.OpUnion))
	assert.Empty(t, single.CombinedShapeID, "input must not change")

	three, err := b.BuildAssembly(context.Background(), "three",
		[]geometry.GeometryResult{cube(ops, "a", 0), cube(ops, "b", 200), cube(ops, "c", 400)}, nil)
	require.NoError(t, err)
	combined, err = b.CombineComponents(context.Background(), three)
	require.NoError(t, err)
	assert.Equal(t, 2, ops.Calls(geomtest.OpUnion))
	s, ok := ops.Shape(combined.CombinedShapeID)
	require.True(t, ok)
	assert.Equal(t, 500.0, s.Bounds.Max.X)
}

func TestCombineComponentsUnionFailure(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)
	a, err := b.BuildAssembly(context.Background(), "pair",
		[]geometry.GeometryResult{cube(ops, "a", 0), cube(ops, "b", 200)}, nil)
	require.NoError(t, err)

	boom := errors.New("union failed")
	ops.Fail[geomtest.OpUnion] = boom
	_, err = b.CombineComponents(context.Background(), a)
	assert.ErrorIs(t, err, boom)
}

func TestAddComponentIsFunctional(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)
	a, err := b.BuildAssembly(context.Background(), "grow", []geometry.GeometryResult{cube(ops, "a", 0)}, nil)
	require.NoError(t, err)

	conn := &geometry.Connection{From: "a", To: "b", Kind: geometry.ConnectionWelded, Point: geometry.Vec3{X: 150}}
	next, err := b.AddComponent(context.Background(), a, cube(ops, "b", 300), conn)
	require.NoError(t, err)

	assert.Len(t, a.Components, 1)
	assert.Empty(t, a.Connections)
	assert.Equal(t, 10.0, a.TotalWeight)

	assert.Len(t, next.Components, 2)
	assert.Equal(t, 20.0, next.TotalWeight)
	assert.Equal(t, 400.0, next.Bounds.Max.X)
	assert.Len(t, next.ConnectionPoints, 1)
	assert.Equal(t, a.ID, next.ID)
}

func TestAddComponentRevalidatesEveryPair(t *testing.T) {
	ops := geomtest.New()
	b := New(ops)
	const n = 3
	var comps []geometry.GeometryResult
	for i := 0; i < n; i++ {
		comps = append(comps, cube(ops, fmt.Sprintf("c%d", i), float64(i)*200))
	}
	a, err := b.BuildAssembly(context.Background(), "quad", comps, nil)
	require.NoError(t, err)
	require.Equal(t, n*(n-1)/2, ops.Calls(geomtest.OpMeasureDistance))

	for k := 1; k <= 4; k++ {
		before := ops.Calls(geomtest.OpMeasureDistance)
		a, err = b.AddComponent(context.Background(), a, cube(ops, fmt.Sprintf("k%d", k), float64(n+k)*200), nil)
		require.NoError(t, err)

		m := n + k
		assert.Equal(t, m*(m-1)/2, ops.Calls(geomtest.OpMeasureDistance)-before,
			"adding component %d should measure all C(%d,2) pairs", k, m)
		assert.Len(t, a.Validation.ClearanceChecks, m*(m-1)/2)
	}
}
