// Package builders implements the domain builders: stairs, ramps, ladders,
// platforms and the structural members (beams, columns, bracing). Each one
// sizes its element with a calculator from pkg/calc, then drives the
// kernel through builder.Construction.
package builders

import (
	"errors"
	"fmt"

	"github.com/chazu/mayhem/pkg/builder"
	"github.com/chazu/mayhem/pkg/calc"
	"github.com/chazu/mayhem/pkg/geometry"
	"go.uber.org/zap"
)

// Element types.
const (
	TypeStairs   = "stairs"
	TypeRamp     = "ramp"
	TypeLadder   = "ladder"
	TypePlatform = "platform"
	TypeBeam     = "beam"
	TypeColumn   = "column"
	TypeBracing  = "bracing"
)

// ErrInvalidElement is returned by Build when the element fails its
// dimensional checks. No kernel call has been made at that point.
var ErrInvalidElement = errors.New("element fails dimensional checks")

// All returns one instance of every domain builder.
func All() []builder.GeometryBuilder {
	return []builder.GeometryBuilder{
		NewStairs(),
		NewRamp(),
		NewLadder(),
		NewPlatform(),
		NewBeam(),
		NewColumn(),
		NewBracing(),
	}
}

// RegisterAll registers every domain builder with r.
func RegisterAll(r *builder.Registry) error {
	for _, b := range All() {
		if err := r.Register(b); err != nil {
			return err
		}
	}
	return nil
}

// findings converts calculator output into a validation result.
func findings(res calc.Result, name string) geometry.ValidationResult {
	var components []string
	if name != "" {
		components = []string{name}
	}
	out := geometry.NewValidationResult()
	for _, f := range res.Errors {
		out.AddError(f.Code, f.Message, components...)
	}
	for _, f := range res.Warnings {
		out.AddWarning(f.Code, f.Message, components...)
	}
	return out
}

// preflight aborts a build whose calculation failed. With
// ValidateDuringBuild set, warnings are logged as well.
func preflight(c *builder.Context, elementType string, in builder.Input, res calc.Result) error {
	if !res.Valid {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidElement, elementType, in.Name, res.Err())
	}
	if c.Options.ValidateDuringBuild {
		for _, w := range res.Warnings {
			c.Log().Warn("element warning",
				zap.String("type", elementType),
				zap.String("name", in.Name),
				zap.String("code", w.Code),
				zap.String("message", w.Message))
		}
	}
	return nil
}
