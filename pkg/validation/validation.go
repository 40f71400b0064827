// Package validation checks built geometry: clearance between shapes,
// solid interference, manufacturability heuristics and building-code
// requirements read from component metadata.
//
// Measurement failures are downgraded rather than propagated. A failed
// distance measurement is reported as a failed clearance check and a
// failed intersection means the shapes are disjoint.
package validation

import (
	"context"
	"fmt"

	"github.com/chazu/mayhem/pkg/geometry"
	"go.uber.org/zap"
)

// Config holds the validation thresholds.
type Config struct {
	MinClearance        float64 `yaml:"min_clearance"`        // between components, mm
	ObstacleClearance   float64 `yaml:"obstacle_clearance"`   // default around obstacles, mm
	InterferenceEpsilon float64 `yaml:"interference_epsilon"` // mm³
	MinFeatureSize      float64 `yaml:"min_feature_size"`     // mm
	MaxDimension        float64 `yaml:"max_dimension"`        // mm
	MinWallThickness    float64 `yaml:"min_wall_thickness"`   // mm
	CheckObstacles      bool    `yaml:"check_obstacles"`
	CheckInterference   bool    `yaml:"check_interference"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinClearance:        1,
		ObstacleClearance:   50,
		InterferenceEpsilon: 0.001,
		MinFeatureSize:      5,
		MaxDimension:        10_000,
		MinWallThickness:    3,
		CheckObstacles:      true,
		CheckInterference:   true,
	}
}

// Validate reports the first nonsensical threshold.
func (c Config) Validate() error {
	switch {
	case c.MinClearance < 0:
		return fmt.Errorf("min_clearance must not be negative")
	case c.ObstacleClearance < 0:
		return fmt.Errorf("obstacle_clearance must not be negative")
	case c.InterferenceEpsilon < 0:
		return fmt.Errorf("interference_epsilon must not be negative")
	case c.MinFeatureSize < 0 || c.MinWallThickness < 0:
		return fmt.Errorf("min_feature_size and min_wall_thickness must not be negative")
	case c.MaxDimension <= 0:
		return fmt.Errorf("max_dimension must be positive")
	}
	return nil
}

// Constraints returns the manufacturing part of the thresholds.
func (c Config) Constraints() Constraints {
	return Constraints{
		MinFeatureSize:   c.MinFeatureSize,
		MaxDimension:     c.MaxDimension,
		MinWallThickness: c.MinWallThickness,
	}
}

// Engine runs kernel-backed validation.
type Engine struct {
	ops    geometry.Ops
	cfg    Config
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an Engine measuring through ops.
func New(ops geometry.Ops, cfg Config, opts ...Option) *Engine {
	e := &Engine{ops: ops, cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config { return e.cfg }

// ----------------------------------------------------------------------------
// Clearance
// ----------------------------------------------------------------------------

func (e *Engine) measure(ctx context.Context, id1, id2 string, s1, s2 geometry.ShapeID, required float64) (geometry.ClearanceCheck, error) {
	d, err := e.ops.MeasureDistance(ctx, s1, s2)
	if err != nil {
		return geometry.ClearanceCheck{
			Component1:        id1,
			Component2:        id2,
			MinDistance:       -1,
			RequiredClearance: required,
		}, err
	}
	return geometry.ClearanceCheck{
		Component1:        id1,
		Component2:        id2,
		MinDistance:       d.Value,
		RequiredClearance: required,
		Passed:            d.Value >= required,
		ClosestPoints:     &[2]geometry.Vec3{d.PointA, d.PointB},
	}, nil
}

// CheckClearance measures the distance between two components. A failed
// measurement yields MinDistance -1 and Passed false.
func (e *Engine) CheckClearance(ctx context.Context, g1, g2 *geometry.GeometryResult, required float64) geometry.ClearanceCheck {
	check, err := e.measure(ctx, g1.ID, g2.ID, g1.ShapeID, g2.ShapeID, required)
	if err != nil {
		e.logger.Warn("clearance measurement failed",
			zap.String("a", g1.ID), zap.String("b", g2.ID), zap.Error(err))
	}
	return check
}

// ----------------------------------------------------------------------------
// Interference
// ----------------------------------------------------------------------------

// Interference is a positive-volume overlap between two components.
type Interference struct {
	Component1 string        `json:"component1"`
	Component2 string        `json:"component2"`
	Volume     float64       `json:"volume"`   // mm³
	Location   geometry.Vec3 `json:"location"` // centre of the overlap
}

// CheckInterference intersects the two shapes and reads the volume of the
// overlap. The intersection handle is always deleted. It reports
// interference only above the configured epsilon; an intersection that
// fails means the shapes are disjoint.
func (e *Engine) CheckInterference(ctx context.Context, g1, g2 *geometry.GeometryResult) (Interference, bool) {
	out := Interference{Component1: g1.ID, Component2: g2.ID}
	overlap, err := e.ops.Intersect(ctx, g1.ShapeID, g2.ShapeID)
	if err != nil {
		e.logger.Debug("intersection failed, treating as disjoint",
			zap.String("a", g1.ID), zap.String("b", g2.ID), zap.Error(err))
		return out, false
	}
	mp, err := e.ops.MassProperties(ctx, overlap)
	if derr := e.ops.Delete(ctx, overlap); derr != nil {
		e.logger.Warn("delete intersection shape", zap.String("shape", string(overlap)), zap.Error(derr))
	}
	if err != nil {
		e.logger.Warn("overlap volume unavailable",
			zap.String("a", g1.ID), zap.String("b", g2.ID), zap.Error(err))
		return out, false
	}
	out.Volume = mp.Volume
	out.Location = mp.CenterOfMass
	return out, mp.Volume > e.cfg.InterferenceEpsilon
}

// FindAllInterferences checks every unordered pair of components.
func (e *Engine) FindAllInterferences(ctx context.Context, a *geometry.AssemblyResult) []Interference {
	found := []Interference{}
	for i := 0; i < len(a.Components); i++ {
		for j := i + 1; j < len(a.Components); j++ {
			if in, ok := e.CheckInterference(ctx, &a.Components[i], &a.Components[j]); ok {
				found = append(found, in)
			}
		}
	}
	return found
}

// ----------------------------------------------------------------------------
// Manufacturing
// ----------------------------------------------------------------------------

// Constraints are the manufacturability limits.
type Constraints struct {
	MinFeatureSize   float64
	MaxDimension     float64
	MinWallThickness float64
}

// ValidateManufacturing applies coarse manufacturability heuristics. It
// only ever warns.
func ValidateManufacturing(g *geometry.GeometryResult, c Constraints) geometry.ValidationResult {
	res := geometry.NewValidationResult()
	if smallest := g.Bounds.Smallest(); smallest < c.MinFeatureSize {
		res.AddWarning(geometry.CodeThinFeature,
			fmt.Sprintf("%s has a %.1fmm dimension, below the %.0fmm minimum feature size", g.Label(), smallest, c.MinFeatureSize),
			g.ID)
	}
	if largest := g.Bounds.Largest(); largest > c.MaxDimension {
		res.AddWarning(geometry.CodeOversize,
			fmt.Sprintf("%s spans %.0fmm, above the %.0fmm fabrication limit", g.Label(), largest, c.MaxDimension),
			g.ID)
	}
	// Volume over surface area approximates half the wall thickness of a
	// thin plate.
	if sa := g.Properties.SurfaceArea; sa > 0 {
		if ratio := g.Properties.Volume / sa; ratio < c.MinWallThickness/3 {
			res.AddWarning(geometry.CodeThinWall,
				fmt.Sprintf("%s volume/area ratio %.2fmm suggests walls thinner than %.1fmm", g.Label(), ratio, c.MinWallThickness),
				g.ID)
		}
	}
	return res
}

// ----------------------------------------------------------------------------
// Orchestration
// ----------------------------------------------------------------------------

// GeometryOptions selects what ValidateGeometry checks.
type GeometryOptions struct {
	// Requirements overrides the standard set for the element type.
	Requirements []Requirement
	// Environment enables obstacle clearance when set.
	Environment *geometry.Environment
}

// ValidateGeometry runs manufacturing and code checks on one component and,
// when an environment is given, its clearance to every obstacle.
func (e *Engine) ValidateGeometry(ctx context.Context, g *geometry.GeometryResult, opts GeometryOptions) geometry.ValidationResult {
	res := ValidateManufacturing(g, e.cfg.Constraints())
	reqs := opts.Requirements
	if reqs == nil {
		reqs = RequirementsFor(g.ElementType)
	}
	res.Merge(ValidateCodeCompliance(g, reqs))
	if opts.Environment != nil && e.cfg.CheckObstacles {
		res.Merge(e.checkObstacles(ctx, []geometry.GeometryResult{*g}, opts.Environment.Obstacles))
	}
	return res
}

// ValidateAssemblyComplete is the terminal validation of a pipeline run:
// per-component manufacturing and code checks, pairwise clearance between
// components, clearance to the environment's obstacles and solid
// interference. Successful pair measurements already recorded on a are
// reused rather than measured again. A pair measured as overlapping is an
// interference even when the intersection volume reads as empty.
func (e *Engine) ValidateAssemblyComplete(ctx context.Context, a *geometry.AssemblyResult, env *geometry.Environment) geometry.ValidationResult {
	res := geometry.NewValidationResult()
	labels := make(map[string]string, len(a.Components))
	for i := range a.Components {
		g := &a.Components[i]
		labels[g.ID] = g.Label()
		res.Merge(ValidateManufacturing(g, e.cfg.Constraints()))
		res.Merge(ValidateCodeCompliance(g, RequirementsFor(g.ElementType)))
	}

	interfering := make(map[pair]bool)
	if e.cfg.CheckInterference {
		for _, in := range e.FindAllInterferences(ctx, a) {
			interfering[pair{in.Component1, in.Component2}] = true
			res.AddError(geometry.CodeInterference,
				fmt.Sprintf("%s and %s overlap by %.1fmm³ near (%.0f, %.0f, %.0f)",
					labels[in.Component1], labels[in.Component2], in.Volume, in.Location.X, in.Location.Y, in.Location.Z),
				in.Component1, in.Component2)
		}
	}

	prior := measured(a)
	for i := 0; i < len(a.Components); i++ {
		for j := i + 1; j < len(a.Components); j++ {
			g1, g2 := &a.Components[i], &a.Components[j]
			check, ok := prior[pair{g1.ID, g2.ID}]
			var err error
			if ok {
				check.RequiredClearance = e.cfg.MinClearance
				check.Passed = check.MinDistance >= e.cfg.MinClearance
			} else {
				check, err = e.measure(ctx, g1.ID, g2.ID, g1.ShapeID, g2.ShapeID, e.cfg.MinClearance)
			}
			res.ClearanceChecks = append(res.ClearanceChecks, check)
			switch {
			case err != nil:
				res.AddWarning(geometry.CodeMeasurementFailed,
					fmt.Sprintf("could not measure clearance between %s and %s: %v", g1.Label(), g2.Label(), err),
					g1.ID, g2.ID)
			case check.MinDistance < 0:
				if !interfering[pair{g1.ID, g2.ID}] {
					res.AddError(geometry.CodeInterference,
						fmt.Sprintf("%s and %s overlap by %.2fmm", g1.Label(), g2.Label(), -check.MinDistance),
						g1.ID, g2.ID)
				}
			case !check.Passed:
				res.AddWarning(geometry.CodeLowClearance,
					fmt.Sprintf("%s and %s are %.2fmm apart, below %.2fmm", g1.Label(), g2.Label(), check.MinDistance, check.RequiredClearance),
					g1.ID, g2.ID)
			}
		}
	}

	if env != nil && e.cfg.CheckObstacles {
		res.Merge(e.checkObstacles(ctx, a.Components, env.Obstacles))
	}
	return res
}

// pair names two components in assembly order.
type pair [2]string

// measured indexes the successful component-pair measurements on a.
func measured(a *geometry.AssemblyResult) map[pair]geometry.ClearanceCheck {
	out := make(map[pair]geometry.ClearanceCheck, len(a.Validation.ClearanceChecks))
	for _, c := range a.Validation.ClearanceChecks {
		if c.ClosestPoints == nil {
			continue
		}
		out[pair{c.Component1, c.Component2}] = c
	}
	return out
}

// checkObstacles measures every component against every obstacle.
// Obstacles without a kernel shape are modelled as their bounding box for
// the duration of the check.
func (e *Engine) checkObstacles(ctx context.Context, comps []geometry.GeometryResult, obstacles []geometry.Obstacle) geometry.ValidationResult {
	res := geometry.NewValidationResult()
	for _, ob := range obstacles {
		shape, release, err := e.obstacleShape(ctx, ob)
		if err != nil {
			res.AddWarning(geometry.CodeMeasurementFailed,
				fmt.Sprintf("could not model obstacle %s: %v", obstacleLabel(ob), err))
			continue
		}
		required := ob.Clearance
		if required <= 0 {
			required = e.cfg.ObstacleClearance
		}
		for i := range comps {
			g := &comps[i]
			check, err := e.measure(ctx, g.ID, ob.ID, g.ShapeID, shape, required)
			res.ClearanceChecks = append(res.ClearanceChecks, check)
			switch {
			case err != nil:
				res.AddWarning(geometry.CodeMeasurementFailed,
					fmt.Sprintf("could not measure clearance between %s and obstacle %s: %v", g.Label(), obstacleLabel(ob), err),
					g.ID)
			case !check.Passed:
				res.AddError(geometry.CodeObstacleClearance,
					fmt.Sprintf("%s is %.1fmm from obstacle %s, %.0fmm required", g.Label(), check.MinDistance, obstacleLabel(ob), required),
					g.ID)
			}
		}
		release()
	}
	return res
}

func obstacleLabel(ob geometry.Obstacle) string {
	if ob.Name != "" {
		return ob.Name
	}
	return ob.ID
}

func (e *Engine) obstacleShape(ctx context.Context, ob geometry.Obstacle) (geometry.ShapeID, func(), error) {
	if ob.ShapeID != "" {
		return ob.ShapeID, func() {}, nil
	}
	size := ob.Bounds.Size()
	box, err := e.ops.Box(ctx, size.X, size.Y, size.Z)
	if err != nil {
		return "", nil, err
	}
	placed, err := e.ops.Translate(ctx, box, ob.Bounds.Min)
	if err != nil {
		e.delete(ctx, box)
		return "", nil, err
	}
	e.delete(ctx, box)
	return placed, func() { e.delete(ctx, placed) }, nil
}

func (e *Engine) delete(ctx context.Context, id geometry.ShapeID) {
	if err := e.ops.Delete(ctx, id); err != nil {
		e.logger.Debug("delete temporary shape", zap.String("shape", string(id)), zap.Error(err))
	}
}
