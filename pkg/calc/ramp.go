package calc

import "math"

// Ramp limits (ADA 405, IBC 1012).
const (
	RampMaxSlope        = 1.0 / 12 // ADA 405.2
	RampMaxRunRise      = 760.0    // ADA 405.6, rise per run
	RampMinWidth        = 915.0    // ADA 405.5
	RampMinLanding      = 1525.0   // ADA 405.7.3
	RampHandrailMinRise = 152.0    // ADA 405.8
	RampEdgeCurbHeight  = 51.0     // ADA 405.9.2
	rampGentleSlope     = 1.0 / 20 // below this it is a walking surface
)

// RampInput describes a straight ramp.
type RampInput struct {
	Rise  float64
	Run   float64
	Width float64
}

// RampResult holds the derived ramp dimensions.
type RampResult struct {
	Result
	Slope             float64 `json:"slope"` // rise over run
	Angle             float64 `json:"angle"`
	Length            float64 `json:"length"` // along the surface
	RunsRequired      int     `json:"runsRequired"`
	LandingsRequired  int     `json:"landingsRequired"`
	HandrailsRequired bool    `json:"handrailsRequired"`
	Width             float64 `json:"width"`
}

// Ramp derives slope and landing requirements.
func Ramp(in RampInput) RampResult {
	res := RampResult{Result: newResult(), Width: in.Width}
	ok := positive(&res.Result, "rise", in.Rise)
	ok = positive(&res.Result, "run", in.Run) && ok
	ok = positive(&res.Result, "width", in.Width) && ok
	if !ok {
		return res
	}

	res.Slope = in.Rise / in.Run
	res.Angle = degrees(math.Atan(res.Slope))
	res.Length = math.Hypot(in.Rise, in.Run)
	res.RunsRequired = int(math.Ceil(in.Rise / RampMaxRunRise))
	res.LandingsRequired = res.RunsRequired - 1
	res.HandrailsRequired = in.Rise > RampHandrailMinRise

	if res.Slope > RampMaxSlope {
		res.fail("RAMP_SLOPE", "slope 1:%.1f is steeper than the 1:12 maximum (ADA 405.2)", 1/res.Slope)
	}
	if in.Width < RampMinWidth {
		res.fail("RAMP_WIDTH", "clear width %.0fmm is below code minimum of %.0fmm (ADA 405.5)", in.Width, RampMinWidth)
	}
	if res.LandingsRequired > 0 {
		res.warn("RAMP_LANDING", "rise of %.0fmm exceeds %.0fmm per run; %d intermediate landing(s) of %.0fmm required (ADA 405.6)",
			in.Rise, RampMaxRunRise, res.LandingsRequired, RampMinLanding)
	}
	if res.Slope < rampGentleSlope {
		res.warn("RAMP_SLOPE", "slope 1:%.0f is gentle enough to be treated as a walking surface", 1/res.Slope)
	}
	return res
}
