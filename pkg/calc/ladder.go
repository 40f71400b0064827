package calc

import "math"

// Fixed ladder limits (OSHA 1910.23, 1910.28).
const (
	LadderMinRungSpacing     = 254.0 // OSHA 1910.23(b)(2)
	LadderMaxRungSpacing     = 356.0 // OSHA 1910.23(b)(2)
	LadderDefaultRungSpacing = 305.0
	LadderMinClearWidth      = 406.0  // OSHA 1910.23(d)(4)
	LadderMinRungDiameter    = 19.0   // OSHA 1910.23(b)(4)
	LadderFallProtection     = 7315.0 // OSHA 1910.28(b)(9), 24 ft
	LadderMinToeClearance    = 178.0  // OSHA 1910.23(d)(2)
	LadderSideRailExtension  = 1067.0 // OSHA 1910.23(d)(3)
)

// LadderInput describes a fixed vertical ladder.
type LadderInput struct {
	Height       float64
	Width        float64 // clear width between rails
	RungSpacing  float64 // zero selects LadderDefaultRungSpacing
	RungDiameter float64
}

// LadderResult holds the derived ladder layout.
type LadderResult struct {
	Result
	RungCount              int     `json:"rungCount"`
	RungSpacing            float64 `json:"rungSpacing"`
	ClearWidth             float64 `json:"clearWidth"`
	Height                 float64 `json:"height"`
	RailLength             float64 `json:"railLength"`
	FallProtectionRequired bool    `json:"fallProtectionRequired"`
}

// Ladder lays out evenly spaced rungs from the base to the top landing.
func Ladder(in LadderInput) LadderResult {
	res := LadderResult{Result: newResult(), ClearWidth: in.Width, Height: in.Height}
	ok := positive(&res.Result, "height", in.Height)
	ok = positive(&res.Result, "width", in.Width) && ok
	if !ok {
		return res
	}
	spacing := in.RungSpacing
	if spacing <= 0 {
		spacing = LadderDefaultRungSpacing
	}

	// Rungs divide the height into equal gaps; the landing is the last step.
	gaps := int(math.Max(1, math.Round(in.Height/spacing)))
	res.RungCount = gaps - 1
	res.RungSpacing = in.Height / float64(gaps)
	res.RailLength = in.Height + LadderSideRailExtension
	res.FallProtectionRequired = in.Height > LadderFallProtection

	if res.RungCount < 1 {
		res.fail("LADDER_HEIGHT", "height %.0fmm is too short for a fixed ladder", in.Height)
	}
	if res.RungSpacing < LadderMinRungSpacing || res.RungSpacing > LadderMaxRungSpacing {
		res.fail("LADDER_RUNG_SPACING", "rung spacing %.0fmm is outside %.0f–%.0fmm (OSHA 1910.23(b)(2))",
			res.RungSpacing, LadderMinRungSpacing, LadderMaxRungSpacing)
	}
	if in.Width < LadderMinClearWidth {
		res.fail("LADDER_WIDTH", "clear width %.0fmm is below code minimum of %.0fmm (OSHA 1910.23(d)(4))", in.Width, LadderMinClearWidth)
	}
	if in.RungDiameter > 0 && in.RungDiameter < LadderMinRungDiameter {
		res.fail("LADDER_RUNG_DIAMETER", "rung diameter %.0fmm is below code minimum of %.0fmm (OSHA 1910.23(b)(4))",
			in.RungDiameter, LadderMinRungDiameter)
	}
	if res.FallProtectionRequired {
		res.warn("LADDER_FALL_PROTECTION", "ladder height %.0fmm exceeds %.0fmm; a personal fall arrest or ladder safety system is required (OSHA 1910.28(b)(9))",
			in.Height, LadderFallProtection)
	}
	return res
}
