package validation

import (
	"strings"
	"testing"

	"github.com/chazu/mayhem/pkg/geometry"
)

func withMeta(elementType string, meta map[string]any) *geometry.GeometryResult {
	return &geometry.GeometryResult{ID: "g1", ElementType: elementType, Metadata: meta}
}

func TestParamRequirements(t *testing.T) {
	g := withMeta("", map[string]any{"a": 10.0, "n": 4})
	tests := []struct {
		name string
		req  Requirement
		fail bool
	}{
		{"max ok", MaxParam("C", "", "a", 10), false},
		{"max violated", MaxParam("C", "", "a", 9.5), true},
		{"min ok", MinParam("C", "", "a", 10), false},
		{"min violated", MinParam("C", "", "a", 11), true},
		{"range ok", RangeParam("C", "", "a", 5, 15), false},
		{"range below", RangeParam("C", "", "a", 11, 15), true},
		{"range above", RangeParam("C", "", "a", 1, 9), true},
		{"int field", MinParam("C", "", "n", 5), true},
		{"missing field passes", MaxParam("C", "", "missing", 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateCodeCompliance(g, []Requirement{tt.req})
			if res.Valid == tt.fail {
				t.Fatalf("Valid = %v, want %v (%v)", res.Valid, !tt.fail, res.Errors)
			}
			if tt.fail {
				if got := res.Errors[0].AffectedComponents; len(got) != 1 || got[0] != "g1" {
					t.Errorf("AffectedComponents = %v, want [g1]", got)
				}
			}
		})
	}
}

func TestRequiredIf(t *testing.T) {
	guards := GuardRequirements()
	tests := []struct {
		name string
		meta map[string]any
		fail bool
	}{
		{"low platform without guard", map[string]any{"height": 500.0}, false},
		{"high platform with guard", map[string]any{"height": 2000.0, "guardHeight": 1067.0}, false},
		{"high platform low guard", map[string]any{"height": 2000.0, "guardHeight": 900.0}, true},
		{"high platform missing guard", map[string]any{"height": 2000.0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateCodeCompliance(withMeta("platform", tt.meta), guards)
			if res.Valid == tt.fail {
				t.Fatalf("Valid = %v, want %v (%v)", res.Valid, !tt.fail, res.Errors)
			}
			if tt.fail && res.Errors[0].Code != "GUARD_HEIGHT" {
				t.Errorf("code = %s, want GUARD_HEIGHT", res.Errors[0].Code)
			}
		})
	}
}

func TestAdvisoryOnlyWarns(t *testing.T) {
	g := withMeta("stairs", map[string]any{"riserHeight": 170.0, "treadDepth": 280.0, "width": 1000.0, "angle": 55.0})
	res := ValidateCodeCompliance(g, StairRequirements())
	if !res.Valid {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != "STAIR_ANGLE" {
		t.Errorf("warnings = %v, want one STAIR_ANGLE", res.Warnings)
	}
}

func TestStandardSets(t *testing.T) {
	tests := []struct {
		elementType string
		meta        map[string]any
		code        string
		section     string
	}{
		{"stairs", map[string]any{"riserHeight": 200.0}, "STAIR_RISER_HEIGHT", "IBC 1011.5.2"},
		{"stairs", map[string]any{"treadDepth": 250.0}, "STAIR_TREAD_DEPTH", "IBC 1011.5.2"},
		{"ramp", map[string]any{"slope": 0.1}, "RAMP_SLOPE", "ADA 405.2"},
		{"ramp", map[string]any{"width": 800.0}, "RAMP_WIDTH", "ADA 405.5"},
		{"ladder", map[string]any{"rungSpacing": 400.0}, "LADDER_RUNG_SPACING", "OSHA 1910.23(b)(2)"},
		{"ladder", map[string]any{"clearWidth": 300.0}, "LADDER_WIDTH", "OSHA 1910.23(d)(4)"},
		{"column", map[string]any{"slenderness": 240.0}, "COLUMN_SLENDERNESS", "AISC E2"},
		{"bracing", map[string]any{"slenderness": 400.0}, "BRACING_SLENDERNESS", "AISC D1"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			res := ValidateCodeCompliance(withMeta(tt.elementType, tt.meta), RequirementsFor(tt.elementType))
			if !res.HasCode(tt.code) {
				t.Fatalf("missing %s in %v", tt.code, res.Errors)
			}
			if !strings.Contains(res.Errors[0].Message, tt.section) {
				t.Errorf("message %q does not cite %s", res.Errors[0].Message, tt.section)
			}
		})
	}
}

func TestRampExactlyOneTwelfthPasses(t *testing.T) {
	res := ValidateCodeCompliance(withMeta("ramp", map[string]any{"slope": 500.0 / 6000, "width": 1200.0}), RampRequirements())
	if !res.Valid {
		t.Errorf("1:12 should pass: %v", res.Errors)
	}
}

func TestRequirementsForUnknown(t *testing.T) {
	if reqs := RequirementsFor("escalator"); reqs != nil {
		t.Errorf("RequirementsFor(escalator) = %v, want nil", reqs)
	}
}
