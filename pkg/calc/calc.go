// Package calc holds the dimensional calculators behind the domain
// builders. Each calculator is pure: given high-level inputs it derives the
// governing dimensions and reports code violations (errors) and advisories
// (warnings) against IBC, OSHA and ADA limits. Lengths are millimetres,
// angles degrees.
package calc

import (
	"fmt"
	"math"
)

// Finding is one violation or advisory raised by a calculator.
type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the validity part shared by every calculator result.
type Result struct {
	Valid    bool      `json:"valid"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

func newResult() Result {
	return Result{Valid: true, Errors: []Finding{}, Warnings: []Finding{}}
}

func (r *Result) fail(code, format string, args ...any) {
	r.Errors = append(r.Errors, Finding{Code: code, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

func (r *Result) warn(code, format string, args ...any) {
	r.Warnings = append(r.Warnings, Finding{Code: code, Message: fmt.Sprintf(format, args...)})
}

// Err returns the first error as a Go error, or nil when valid.
func (r Result) Err() error {
	if r.Valid || len(r.Errors) == 0 {
		return nil
	}
	if len(r.Errors) == 1 {
		return fmt.Errorf("%s: %s", r.Errors[0].Code, r.Errors[0].Message)
	}
	return fmt.Errorf("%s: %s (and %d more)", r.Errors[0].Code, r.Errors[0].Message, len(r.Errors)-1)
}

func positive(r *Result, name string, v float64) bool {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		r.fail("INVALID_INPUT", "%s must be a positive length, got %g", name, v)
		return false
	}
	return true
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
