package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/mayhem/pkg/geometry"
	"github.com/chazu/mayhem/pkg/geometry/geomtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func part(ops *geomtest.Ops, id string, min, max geometry.Vec3) geometry.GeometryResult {
	b := geometry.Bounds{Min: min, Max: max}
	s := b.Size()
	return geometry.GeometryResult{
		ID:      id,
		ShapeID: ops.Add(b),
		Bounds:  b,
		Properties: geometry.Properties{
			Volume:      s.X * s.Y * s.Z,
			SurfaceArea: 2 * (s.X*s.Y + s.Y*s.Z + s.X*s.Z),
		},
	}
}

func box(ops *geomtest.Ops, id string, x float64) geometry.GeometryResult {
	return part(ops, id, geometry.Vec3{X: x}, geometry.Vec3{X: x + 100, Y: 100, Z: 100})
}

func TestCheckClearance(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())
	a, b := box(ops, "a", 0), box(ops, "b", 150)

	check := e.CheckClearance(context.Background(), &a, &b, 25)
	assert.Equal(t, 50.0, check.MinDistance)
	assert.True(t, check.Passed)
	assert.NotNil(t, check.ClosestPoints)

	check = e.CheckClearance(context.Background(), &a, &b, 75)
	assert.False(t, check.Passed)
}

func TestCheckClearanceMeasurementFailure(t *testing.T) {
	ops := geomtest.New()
	ops.Fail[geomtest.OpMeasureDistance] = errors.New("kernel gone")
	e := New(ops, DefaultConfig())
	a, b := box(ops, "a", 0), box(ops, "b", 150)

	check := e.CheckClearance(context.Background(), &a, &b, 10)
	assert.Equal(t, -1.0, check.MinDistance)
	assert.False(t, check.Passed)
	assert.Equal(t, "a", check.Component1)
	assert.Equal(t, "b", check.Component2)
}

func TestCheckInterference(t *testing.T) {
	tests := []struct {
		name      string
		offset    float64
		interfere bool
		volume    float64
	}{
		{"disjoint", 150, false, 0},
		{"touching", 100, false, 0},
		// 10 × 100 × 100 overlap.
		{"overlapping", 90, true, 100_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := geomtest.New()
			e := New(ops, DefaultConfig())
			a, b := box(ops, "a", 0), box(ops, "b", tt.offset)

			in, ok := e.CheckInterference(context.Background(), &a, &b)
			assert.Equal(t, tt.interfere, ok)
			assert.InDelta(t, tt.volume, in.Volume, 1e-6)
			// Intersection handles never outlive the check.
			assert.Equal(t, 2, ops.Live())
		})
	}
}

func TestCheckInterferenceDeletesHandle(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())
	a, b := box(ops, "a", 0), box(ops, "b", 50)

	_, ok := e.CheckInterference(context.Background(), &a, &b)
	require.True(t, ok)
	assert.Equal(t, 1, ops.Calls(geomtest.OpIntersect))
	assert.Equal(t, 1, ops.Calls(geomtest.OpDelete))
	assert.Len(t, ops.Deleted(), 1)
}

func TestCheckInterferenceFailureMeansDisjoint(t *testing.T) {
	ops := geomtest.New()
	ops.Fail[geomtest.OpIntersect] = errors.New("boolean failed")
	e := New(ops, DefaultConfig())
	a, b := box(ops, "a", 0), box(ops, "b", 50)

	_, ok := e.CheckInterference(context.Background(), &a, &b)
	assert.False(t, ok)
	assert.Zero(t, ops.Calls(geomtest.OpDelete))
}

func TestFindAllInterferences(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())

	apart := &geometry.AssemblyResult{Components: []geometry.GeometryResult{box(ops, "a", 0), box(ops, "b", 500)}}
	assert.Empty(t, e.FindAllInterferences(context.Background(), apart))

	// b overlaps a by 20 × 100 × 100; c is clear of both.
	overlapping := &geometry.AssemblyResult{Components: []geometry.GeometryResult{
		box(ops, "a", 0), box(ops, "b", 80), box(ops, "c", 1000),
	}}
	found := e.FindAllInterferences(context.Background(), overlapping)
	require.Len(t, found, 1)
	assert.Equal(t, "a", found[0].Component1)
	assert.Equal(t, "b", found[0].Component2)
	assert.InDelta(t, 200_000, found[0].Volume, 1e-6)
	assert.InDelta(t, 90, found[0].Location.X, 1e-9)
}

func TestValidateManufacturing(t *testing.T) {
	ops := geomtest.New()
	c := DefaultConfig().Constraints()
	tests := []struct {
		name  string
		g     geometry.GeometryResult
		codes []string
	}{
		{"ordinary", box(ops, "ok", 0), nil},
		{"thin plate", part(ops, "plate", geometry.Vec3{}, geometry.Vec3{X: 1000, Y: 1000, Z: 1.5}),
			[]string{geometry.CodeThinFeature, geometry.CodeThinWall}},
		{"oversize", part(ops, "rail", geometry.Vec3{}, geometry.Vec3{X: 12_000, Y: 100, Z: 100}),
			[]string{geometry.CodeOversize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateManufacturing(&tt.g, c)
			assert.True(t, res.Valid, "manufacturing checks never fail")
			var codes []string
			for _, w := range res.Warnings {
				codes = append(codes, w.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestValidateAssemblyComplete(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())
	a := &geometry.AssemblyResult{Components: []geometry.GeometryResult{
		box(ops, "a", 0), box(ops, "b", 50), box(ops, "c", 400),
	}}
	env := &geometry.Environment{Obstacles: []geometry.Obstacle{{
		ID:     "duct",
		Name:   "duct",
		Bounds: geometry.Bounds{Min: geometry.Vec3{X: 520}, Max: geometry.Vec3{X: 600, Y: 100, Z: 100}},
	}}}

	res := e.ValidateAssemblyComplete(context.Background(), a, env)
	assert.False(t, res.Valid)
	assert.True(t, res.HasCode(geometry.CodeInterference))
	assert.True(t, res.HasCode(geometry.CodeObstacleClearance))

	// c sits 20mm from the duct, under the 50mm default.
	var obstacle []geometry.ValidationIssue
	for _, i := range res.Errors {
		if i.Code == geometry.CodeObstacleClearance {
			obstacle = append(obstacle, i)
		}
	}
	require.Len(t, obstacle, 1)
	assert.Equal(t, []string{"c"}, obstacle[0].AffectedComponents)

	// 3 component pairs plus 3 obstacle checks.
	assert.Len(t, res.ClearanceChecks, 6)
	// The temporary obstacle shape and every intersection are released.
	assert.Equal(t, 3, ops.Live())
}

func TestValidateAssemblyCompleteSkipsDisabledChecks(t *testing.T) {
	ops := geomtest.New()
	cfg := DefaultConfig()
	cfg.CheckInterference = false
	cfg.CheckObstacles = false
	e := New(ops, cfg)
	a := &geometry.AssemblyResult{Components: []geometry.GeometryResult{box(ops, "a", 0), box(ops, "b", 50)}}
	env := &geometry.Environment{Obstacles: []geometry.Obstacle{{ID: "x", Bounds: geometry.Bounds{Max: geometry.Vec3{X: 1, Y: 1, Z: 1}}}}}

	res := e.ValidateAssemblyComplete(context.Background(), a, env)
	assert.Zero(t, ops.Calls(geomtest.OpIntersect))
	assert.Zero(t, ops.Calls(geomtest.OpBox))

	// The 50mm overlap still shows up through the measured distance.
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, geometry.CodeInterference, res.Errors[0].Code)
	assert.Equal(t, []string{"a", "b"}, res.Errors[0].AffectedComponents)
}

func TestValidateAssemblyCompleteNegativeDistance(t *testing.T) {
	tests := []struct {
		name         string
		interference bool
	}{
		{"interference disabled", false},
		// The intersection of a sliver overlap can read as empty.
		{"intersection finds nothing", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := geomtest.New()
			ops.DistanceFunc = func(_, _ geometry.ShapeID) (geometry.Distance, error) {
				return geometry.Distance{Value: -2}, nil
			}
			cfg := DefaultConfig()
			cfg.CheckInterference = tt.interference
			e := New(ops, cfg)
			a := &geometry.AssemblyResult{Components: []geometry.GeometryResult{box(ops, "a", 0), box(ops, "b", 500)}}

			res := e.ValidateAssemblyComplete(context.Background(), a, nil)
			assert.False(t, res.Valid)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, geometry.CodeInterference, res.Errors[0].Code)
			assert.Contains(t, res.Errors[0].Message, "overlap by 2.00mm")
			assert.Empty(t, res.Warnings)
			require.Len(t, res.ClearanceChecks, 1)
			assert.Equal(t, -2.0, res.ClearanceChecks[0].MinDistance)
		})
	}
}

func TestValidateAssemblyCompleteReportsInterferenceOnce(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())
	a := &geometry.AssemblyResult{Components: []geometry.GeometryResult{box(ops, "a", 0), box(ops, "b", 50)}}
	a.Components[0].Name = "west"

	res := e.ValidateAssemblyComplete(context.Background(), a, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, geometry.CodeInterference, res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Message, "west and b overlap by")
	assert.Contains(t, res.Errors[0].Message, "mm³")
}

func TestValidateAssemblyCompleteReusesMeasurements(t *testing.T) {
	ops := geomtest.New()
	cfg := DefaultConfig()
	cfg.CheckInterference = false
	e := New(ops, cfg)
	a := &geometry.AssemblyResult{Components: []geometry.GeometryResult{
		box(ops, "a", 0), box(ops, "b", 100.5), box(ops, "c", 400),
	}}
	a.Validation = geometry.NewValidationResult()
	a.Validation.ClearanceChecks = []geometry.ClearanceCheck{
		{Component1: "a", Component2: "b", MinDistance: 0.5, RequiredClearance: 1, ClosestPoints: &[2]geometry.Vec3{}},
		// Failed measurements carry no points and are taken again.
		{Component1: "a", Component2: "c", MinDistance: -1},
	}

	res := e.ValidateAssemblyComplete(context.Background(), a, nil)
	assert.Equal(t, 2, ops.Calls(geomtest.OpMeasureDistance))
	require.Len(t, res.ClearanceChecks, 3)
	assert.Equal(t, cfg.MinClearance, res.ClearanceChecks[0].RequiredClearance)
	assert.False(t, res.ClearanceChecks[0].Passed)
	assert.Equal(t, 300.0, res.ClearanceChecks[1].MinDistance)
	assert.True(t, res.HasCode(geometry.CodeLowClearance))
	assert.True(t, res.Valid)
}

func TestValidateGeometryUsesElementRequirements(t *testing.T) {
	ops := geomtest.New()
	e := New(ops, DefaultConfig())
	g := box(ops, "s1", 0)
	g.ElementType = "stairs"
	g.Metadata = map[string]any{"riserHeight": 200.0, "treadDepth": 280.0, "width": 1000.0, "angle": 35.0}

	res := e.ValidateGeometry(context.Background(), &g, GeometryOptions{})
	assert.False(t, res.Valid)
	assert.True(t, res.HasCode("STAIR_RISER_HEIGHT"))
	assert.Contains(t, res.Errors[0].Message, "178")
	assert.Zero(t, ops.TotalCalls())

	res = e.ValidateGeometry(context.Background(), &g, GeometryOptions{Requirements: []Requirement{}})
	assert.True(t, res.Valid)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	bad := DefaultConfig()
	bad.MaxDimension = 0
	assert.Error(t, bad.Validate())
	bad = DefaultConfig()
	bad.MinClearance = -1
	assert.Error(t, bad.Validate())
}
