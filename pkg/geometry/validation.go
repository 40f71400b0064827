package geometry

import (
	"fmt"
	"strings"
)

// Severity indicates whether a validation finding blocks acceptance or is
// advisory.
type Severity int

const (
	SeverityError   Severity = iota // blocks acceptance
	SeverityWarning                 // advisory
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Issue codes produced by the assembly and validation engines.
const (
	CodeInterference       = "INTERFERENCE"
	CodeLowClearance       = "LOW_CLEARANCE"
	CodeMeasurementFailed  = "MEASUREMENT_FAILED"
	CodeClearanceViolation = "CLEARANCE_VIOLATION"
	CodeObstacleClearance  = "OBSTACLE_CLEARANCE"
	CodeThinFeature        = "THIN_FEATURE"
	CodeOversize           = "OVERSIZE"
	CodeThinWall           = "THIN_WALL"
	CodeInvalidInput       = "INVALID_INPUT"
)

// ValidationIssue is a single structured finding.
type ValidationIssue struct {
	Code               string   `json:"code"`
	Severity           Severity `json:"severity"`
	Message            string   `json:"message"`
	AffectedComponents []string `json:"affectedComponents,omitempty"`
}

func (i ValidationIssue) Error() string {
	if len(i.AffectedComponents) == 0 {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", i.Severity, i.Code, i.Message, strings.Join(i.AffectedComponents, ", "))
}

// ClearanceCheck records one measured distance between two shapes.
type ClearanceCheck struct {
	Component1        string   `json:"component1"`
	Component2        string   `json:"component2"`
	MinDistance       float64  `json:"minDistance"`
	RequiredClearance float64  `json:"requiredClearance"`
	Passed            bool     `json:"passed"`
	ClosestPoints     *[2]Vec3 `json:"closestPoints,omitempty"`
}

// ValidationResult bundles errors (blocking), warnings (advisory) and the
// clearance measurements behind them.
type ValidationResult struct {
	Valid           bool              `json:"valid"`
	Errors          []ValidationIssue `json:"errors"`
	Warnings        []ValidationIssue `json:"warnings"`
	ClearanceChecks []ClearanceCheck  `json:"clearanceChecks"`
}

// NewValidationResult returns an empty, valid result.
func NewValidationResult() ValidationResult {
	return ValidationResult{
		Valid:           true,
		Errors:          []ValidationIssue{},
		Warnings:        []ValidationIssue{},
		ClearanceChecks: []ClearanceCheck{},
	}
}

// Add files an issue under errors or warnings by severity. Info findings
// are kept with the warnings; they never block.
func (r *ValidationResult) Add(issue ValidationIssue) {
	if issue.Severity == SeverityError {
		r.Errors = append(r.Errors, issue)
		r.Valid = false
		return
	}
	r.Warnings = append(r.Warnings, issue)
}

// AddError records a blocking issue.
func (r *ValidationResult) AddError(code, msg string, components ...string) {
	r.Add(ValidationIssue{Code: code, Severity: SeverityError, Message: msg, AffectedComponents: components})
}

// AddWarning records an advisory issue.
func (r *ValidationResult) AddWarning(code, msg string, components ...string) {
	r.Add(ValidationIssue{Code: code, Severity: SeverityWarning, Message: msg, AffectedComponents: components})
}

// Merge appends everything from o and recomputes Valid.
func (r *ValidationResult) Merge(o ValidationResult) {
	r.Errors = append(r.Errors, o.Errors...)
	r.Warnings = append(r.Warnings, o.Warnings...)
	r.ClearanceChecks = append(r.ClearanceChecks, o.ClearanceChecks...)
	r.Valid = len(r.Errors) == 0
}

// Clone returns a deep copy of the slices.
func (r ValidationResult) Clone() ValidationResult {
	return ValidationResult{
		Valid:           r.Valid,
		Errors:          append([]ValidationIssue{}, r.Errors...),
		Warnings:        append([]ValidationIssue{}, r.Warnings...),
		ClearanceChecks: append([]ClearanceCheck{}, r.ClearanceChecks...),
	}
}

// HasCode reports whether any error or warning carries code.
func (r ValidationResult) HasCode(code string) bool {
	for _, i := range r.Errors {
		if i.Code == code {
			return true
		}
	}
	for _, i := range r.Warnings {
		if i.Code == code {
			return true
		}
	}
	return false
}
