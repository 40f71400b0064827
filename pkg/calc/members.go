package calc

import "math"

// Structural member limits (AISC 360).
const (
	BeamMaxSpanDepth       = 24.0 // serviceability rule of thumb for floor beams
	BeamHardSpanDepth      = 40.0
	ColumnMaxSlenderness   = 200.0 // AISC E2
	BracingMaxSlenderness  = 300.0 // AISC D1, tension members
	BracingMinAngle        = 30.0
	BracingMaxAngle        = 60.0
	columnSlenderWarnRatio = 0.8
)

// BeamInput describes a wide-flange beam between two points.
type BeamInput struct {
	Length          float64
	Depth           float64
	FlangeWidth     float64
	FlangeThickness float64
	WebThickness    float64
}

// BeamResult holds derived beam properties.
type BeamResult struct {
	Result
	Length         float64 `json:"length"`
	Depth          float64 `json:"depth"`
	SpanDepthRatio float64 `json:"spanDepthRatio"`
	Area           float64 `json:"area"`   // section area, mm²
	Weight         float64 `json:"weight"` // per metre for steel, kg/m
}

// Beam checks the span-to-depth ratio of an I section.
func Beam(in BeamInput) BeamResult {
	res := BeamResult{Result: newResult(), Length: in.Length, Depth: in.Depth}
	ok := positive(&res.Result, "length", in.Length)
	ok = positive(&res.Result, "depth", in.Depth) && ok
	ok = positive(&res.Result, "flange width", in.FlangeWidth) && ok
	ok = positive(&res.Result, "flange thickness", in.FlangeThickness) && ok
	ok = positive(&res.Result, "web thickness", in.WebThickness) && ok
	if !ok {
		return res
	}

	res.SpanDepthRatio = in.Length / in.Depth
	res.Area = 2*in.FlangeWidth*in.FlangeThickness + (in.Depth-2*in.FlangeThickness)*in.WebThickness
	res.Weight = res.Area / 1e6 * 7850

	if 2*in.FlangeThickness >= in.Depth {
		res.fail("BEAM_SECTION", "flanges (2 × %.0fmm) leave no web in a %.0fmm deep section", in.FlangeThickness, in.Depth)
	}
	if in.WebThickness > in.FlangeWidth {
		res.fail("BEAM_SECTION", "web thickness %.0fmm exceeds flange width %.0fmm", in.WebThickness, in.FlangeWidth)
	}
	switch {
	case res.SpanDepthRatio > BeamHardSpanDepth:
		res.fail("BEAM_SPAN_DEPTH", "span/depth ratio %.1f exceeds %.0f", res.SpanDepthRatio, BeamHardSpanDepth)
	case res.SpanDepthRatio > BeamMaxSpanDepth:
		res.warn("BEAM_SPAN_DEPTH", "span/depth ratio %.1f exceeds %.0f; deflection likely governs", res.SpanDepthRatio, BeamMaxSpanDepth)
	}
	return res
}

// ColumnInput describes a solid column. A positive Diameter selects a round
// section, otherwise a square section of side Size.
type ColumnInput struct {
	Height   float64
	Size     float64
	Diameter float64
	K        float64 // effective length factor, zero selects 1.0
}

// ColumnResult holds the derived column properties.
type ColumnResult struct {
	Result
	Height           float64 `json:"height"`
	RadiusOfGyration float64 `json:"radiusOfGyration"`
	Slenderness      float64 `json:"slenderness"` // KL/r
	Round            bool    `json:"round"`
}

// Column checks the slenderness ratio KL/r.
func Column(in ColumnInput) ColumnResult {
	res := ColumnResult{Result: newResult(), Height: in.Height, Round: in.Diameter > 0}
	ok := positive(&res.Result, "height", in.Height)
	if res.Round {
		ok = positive(&res.Result, "diameter", in.Diameter) && ok
	} else {
		ok = positive(&res.Result, "size", in.Size) && ok
	}
	if !ok {
		return res
	}
	k := in.K
	if k <= 0 {
		k = 1
	}

	if res.Round {
		res.RadiusOfGyration = in.Diameter / 4
	} else {
		res.RadiusOfGyration = in.Size / math.Sqrt(12)
	}
	res.Slenderness = k * in.Height / res.RadiusOfGyration

	switch {
	case res.Slenderness > ColumnMaxSlenderness:
		res.fail("COLUMN_SLENDERNESS", "slenderness KL/r %.0f exceeds %.0f (AISC E2)", res.Slenderness, ColumnMaxSlenderness)
	case res.Slenderness > columnSlenderWarnRatio*ColumnMaxSlenderness:
		res.warn("COLUMN_SLENDERNESS", "slenderness KL/r %.0f is close to the %.0f limit", res.Slenderness, ColumnMaxSlenderness)
	}
	return res
}

// BracingInput describes a round diagonal brace.
type BracingInput struct {
	Length   float64
	Rise     float64 // vertical component of the brace
	Diameter float64
}

// BracingResult holds the derived brace properties.
type BracingResult struct {
	Result
	Length      float64 `json:"length"`
	Angle       float64 `json:"angle"` // from horizontal
	Slenderness float64 `json:"slenderness"`
}

// Bracing checks brace slenderness L/r and its inclination.
func Bracing(in BracingInput) BracingResult {
	res := BracingResult{Result: newResult(), Length: in.Length}
	ok := positive(&res.Result, "length", in.Length)
	ok = positive(&res.Result, "diameter", in.Diameter) && ok
	if !ok {
		return res
	}
	res.Slenderness = in.Length / (in.Diameter / 4)
	res.Angle = degrees(math.Asin(math.Min(1, math.Abs(in.Rise)/in.Length)))

	if res.Slenderness > BracingMaxSlenderness {
		res.fail("BRACING_SLENDERNESS", "slenderness L/r %.0f exceeds %.0f (AISC D1)", res.Slenderness, BracingMaxSlenderness)
	}
	if res.Angle < BracingMinAngle || res.Angle > BracingMaxAngle {
		res.warn("BRACING_ANGLE", "brace angle %.0f° is outside the effective %.0f–%.0f° range", res.Angle, BracingMinAngle, BracingMaxAngle)
	}
	return res
}
