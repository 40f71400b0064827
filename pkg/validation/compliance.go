package validation

import (
	"fmt"

	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
)

// Requirement is one building-code rule. Check inspects conventionally
// named metadata fields and returns an issue, or nil when the rule is met
// or does not apply.
type Requirement struct {
	Code    string
	Section string
	// Param is the metadata field the rule reads, if any.
	Param string
	Check func(g *geometry.GeometryResult) *geometry.ValidationIssue
}

// Condition gates a requirement on a component.
type Condition func(g *geometry.GeometryResult) bool

// ValidateCodeCompliance runs every requirement against g.
func ValidateCodeCompliance(g *geometry.GeometryResult, reqs []Requirement) geometry.ValidationResult {
	res := geometry.NewValidationResult()
	for _, r := range reqs {
		issue := r.Check(g)
		if issue == nil {
			continue
		}
		if issue.Code == "" {
			issue.Code = r.Code
		}
		if len(issue.AffectedComponents) == 0 && g.ID != "" {
			issue.AffectedComponents = []string{g.ID}
		}
		res.Add(*issue)
	}
	return res
}

func cite(msg, section string) string {
	if section == "" {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, section)
}

func paramIssue(code, section string, severity geometry.Severity, format string, args ...any) *geometry.ValidationIssue {
	return &geometry.ValidationIssue{
		Code:     code,
		Severity: severity,
		Message:  cite(fmt.Sprintf(format, args...), section),
	}
}

// MaxParam requires metadata[key] <= max. Components without the field
// pass.
func MaxParam(code, section, key string, max float64) Requirement {
	return Requirement{Code: code, Section: section, Param: key, Check: func(g *geometry.GeometryResult) *geometry.ValidationIssue {
		v, ok := g.Float(key)
		if !ok || v <= max {
			return nil
		}
		return paramIssue(code, section, geometry.SeverityError, "%s %.4g exceeds code maximum of %.4g", key, v, max)
	}}
}

// MinParam requires metadata[key] >= min. Components without the field
// pass.
func MinParam(code, section, key string, min float64) Requirement {
	return Requirement{Code: code, Section: section, Param: key, Check: func(g *geometry.GeometryResult) *geometry.ValidationIssue {
		v, ok := g.Float(key)
		if !ok || v >= min {
			return nil
		}
		return paramIssue(code, section, geometry.SeverityError, "%s %.4g is below code minimum of %.4g", key, v, min)
	}}
}

// RangeParam requires min <= metadata[key] <= max.
func RangeParam(code, section, key string, min, max float64) Requirement {
	return Requirement{Code: code, Section: section, Param: key, Check: func(g *geometry.GeometryResult) *geometry.ValidationIssue {
		v, ok := g.Float(key)
		if !ok || (v >= min && v <= max) {
			return nil
		}
		return paramIssue(code, section, geometry.SeverityError, "%s %.4g is outside %.4g–%.4g", key, v, min, max)
	}}
}

// RequiredIf applies req only when cond holds. While it holds, a missing
// req.Param field is itself a violation.
func RequiredIf(cond Condition, req Requirement) Requirement {
	out := req
	out.Check = func(g *geometry.GeometryResult) *geometry.ValidationIssue {
		if !cond(g) {
			return nil
		}
		if req.Param != "" {
			if _, ok := g.Float(req.Param); !ok {
				return paramIssue(req.Code, req.Section, geometry.SeverityError, "%s is required", req.Param)
			}
		}
		return req.Check(g)
	}
	return out
}

// Advisory downgrades a requirement's findings to warnings.
func Advisory(req Requirement) Requirement {
	out := req
	out.Check = func(g *geometry.GeometryResult) *geometry.ValidationIssue {
		issue := req.Check(g)
		if issue != nil {
			issue.Severity = geometry.SeverityWarning
		}
		return issue
	}
	return out
}

// ParamAbove holds when metadata[key] exceeds v.
func ParamAbove(key string, v float64) Condition {
	return func(g *geometry.GeometryResult) bool {
		x, ok := g.Float(key)
		return ok && x > v
	}
}

// ----------------------------------------------------------------------------
// Standard requirement sets
// ----------------------------------------------------------------------------

// StairRequirements checks riser height, tread depth and width (IBC 1011).
func StairRequirements() []Requirement {
	return []Requirement{
		RangeParam("STAIR_RISER_HEIGHT", "IBC 1011.5.2", "riserHeight", calc.StairMinRiser, calc.StairMaxRiser),
		MinParam("STAIR_TREAD_DEPTH", "IBC 1011.5.2", "treadDepth", calc.StairMinTread),
		MinParam("STAIR_WIDTH", "IBC 1011.2", "width", calc.StairMinWidth),
		Advisory(RangeParam("STAIR_ANGLE", "OSHA 1910.25", "angle", calc.StairMinAngle, calc.StairMaxAngle)),
	}
}

// RampRequirements checks slope and clear width (ADA 405).
func RampRequirements() []Requirement {
	return []Requirement{
		MaxParam("RAMP_SLOPE", "ADA 405.2", "slope", calc.RampMaxSlope),
		MinParam("RAMP_WIDTH", "ADA 405.5", "width", calc.RampMinWidth),
	}
}

// LadderRequirements checks rung spacing, clear width and rung diameter
// (OSHA 1910.23).
func LadderRequirements() []Requirement {
	return []Requirement{
		RangeParam("LADDER_RUNG_SPACING", "OSHA 1910.23(b)(2)", "rungSpacing", calc.LadderMinRungSpacing, calc.LadderMaxRungSpacing),
		MinParam("LADDER_WIDTH", "OSHA 1910.23(d)(4)", "clearWidth", calc.LadderMinClearWidth),
		MinParam("LADDER_RUNG_DIAMETER", "OSHA 1910.23(b)(4)", "rungDiameter", calc.LadderMinRungDiameter),
	}
}

// GuardRequirements requires a guard of at least 1067mm on walking
// surfaces more than 762mm above the floor (IBC 1015).
func GuardRequirements() []Requirement {
	return []Requirement{
		RequiredIf(ParamAbove("height", calc.GuardRequiredHeight),
			MinParam("GUARD_HEIGHT", "IBC 1015.3", "guardHeight", calc.GuardMinHeight)),
	}
}

// MemberRequirements checks structural member ratios (AISC 360).
func MemberRequirements() []Requirement {
	return []Requirement{
		Advisory(MaxParam("BEAM_SPAN_DEPTH", "", "spanDepthRatio", calc.BeamMaxSpanDepth)),
		MaxParam("COLUMN_SLENDERNESS", "AISC E2", "slenderness", calc.ColumnMaxSlenderness),
	}
}

// BracingRequirements checks brace slenderness (AISC D1).
func BracingRequirements() []Requirement {
	return []Requirement{
		MaxParam("BRACING_SLENDERNESS", "AISC D1", "slenderness", calc.BracingMaxSlenderness),
	}
}

// RequirementsFor returns the standard set for an element type, or nil.
func RequirementsFor(elementType string) []Requirement {
	switch elementType {
	case "stairs":
		return StairRequirements()
	case "ramp":
		return RampRequirements()
	case "ladder":
		return LadderRequirements()
	case "platform":
		return GuardRequirements()
	case "beam", "column":
		return MemberRequirements()
	case "bracing":
		return BracingRequirements()
	}
	return nil
}
