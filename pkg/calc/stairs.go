package calc

import "math"

// Stair limits (IBC 1011, OSHA 1910.25).
const (
	StairMaxRiser       = 178.0  // IBC 1011.5.2
	StairMinRiser       = 102.0  // IBC 1011.5.2
	StairMinTread       = 279.0  // IBC 1011.5.2
	StairMinWidth       = 914.0  // IBC 1011.2
	StairMaxFlightRise  = 3658.0 // IBC 1011.8, rise between landings
	StairMinAngle       = 30.0   // OSHA 1910.25(c)(2)
	StairMaxAngle       = 50.0   // OSHA 1910.25(c)(2)
	StairHandrailRisers = 4      // OSHA 1910.28(b)(11), four or more risers
	StairComfortMin     = 610.0  // 2R + T comfort range
	StairComfortMax     = 635.0
	StairRiseTolerance  = 9.5 // IBC 1011.5.4, riser variation
)

// StairInput describes a straight flight between two levels.
type StairInput struct {
	Rise  float64 // total vertical rise
	Run   float64 // total horizontal run
	Width float64
	// RiserHeight forces the riser height; zero derives it from Rise.
	RiserHeight float64
}

// StairResult holds the derived flight dimensions.
type StairResult struct {
	Result
	RiserCount       int     `json:"riserCount"`
	TreadCount       int     `json:"treadCount"`
	RiserHeight      float64 `json:"riserHeight"`
	TreadDepth       float64 `json:"treadDepth"`
	Angle            float64 `json:"angle"`
	StringerLength   float64 `json:"stringerLength"`
	HandrailRequired bool    `json:"handrailRequired"`
	LandingsRequired int     `json:"landingsRequired"`
	ComfortIndex     float64 `json:"comfortIndex"` // 2R + T
	Width            float64 `json:"width"`
}

// Stairs derives a flight with equal risers and treads.
func Stairs(in StairInput) StairResult {
	res := StairResult{Result: newResult(), Width: in.Width}
	ok := positive(&res.Result, "rise", in.Rise)
	ok = positive(&res.Result, "run", in.Run) && ok
	ok = positive(&res.Result, "width", in.Width) && ok
	if !ok {
		return res
	}

	if in.RiserHeight > 0 {
		res.RiserCount = int(math.Max(1, math.Round(in.Rise/in.RiserHeight)))
		res.RiserHeight = in.RiserHeight
	} else {
		res.RiserCount = int(math.Ceil(in.Rise / StairMaxRiser))
		res.RiserHeight = in.Rise / float64(res.RiserCount)
	}
	res.TreadCount = res.RiserCount - 1
	if res.TreadCount > 0 {
		res.TreadDepth = in.Run / float64(res.TreadCount)
	} else {
		res.TreadDepth = in.Run
	}
	res.Angle = degrees(math.Atan2(in.Rise, in.Run))
	res.StringerLength = math.Hypot(in.Rise, in.Run)
	res.HandrailRequired = res.RiserCount >= StairHandrailRisers
	res.ComfortIndex = 2*res.RiserHeight + res.TreadDepth
	res.LandingsRequired = int(math.Ceil(in.Rise/StairMaxFlightRise)) - 1

	if in.RiserHeight > 0 {
		if built := float64(res.RiserCount) * res.RiserHeight; math.Abs(built-in.Rise) > StairRiseTolerance {
			res.warn("STAIR_RISE_MISMATCH", "%d risers of %.0fmm climb %.0fmm, %.0fmm off the %.0fmm rise",
				res.RiserCount, res.RiserHeight, built, math.Abs(built-in.Rise), in.Rise)
		}
	}
	if res.RiserHeight > StairMaxRiser {
		res.fail("STAIR_RISER_HEIGHT", "riser height %.0fmm exceeds code maximum of %.0fmm (IBC 1011.5.2)", res.RiserHeight, StairMaxRiser)
	}
	if res.RiserHeight < StairMinRiser {
		res.fail("STAIR_RISER_HEIGHT", "riser height %.0fmm is below code minimum of %.0fmm (IBC 1011.5.2)", res.RiserHeight, StairMinRiser)
	}
	if res.TreadDepth < StairMinTread {
		res.fail("STAIR_TREAD_DEPTH", "tread depth %.0fmm is below code minimum of %.0fmm (IBC 1011.5.2)", res.TreadDepth, StairMinTread)
	}
	if in.Width < StairMinWidth {
		res.fail("STAIR_WIDTH", "stair width %.0fmm is below code minimum of %.0fmm (IBC 1011.2)", in.Width, StairMinWidth)
	}
	if res.LandingsRequired > 0 {
		res.warn("STAIR_LANDING", "rise of %.0fmm exceeds %.0fmm per flight; %d intermediate landing(s) required (IBC 1011.8)",
			in.Rise, StairMaxFlightRise, res.LandingsRequired)
	}
	if res.Angle < StairMinAngle || res.Angle > StairMaxAngle {
		res.warn("STAIR_ANGLE", "stair angle %.1f° is outside %.0f–%.0f° (OSHA 1910.25)", res.Angle, StairMinAngle, StairMaxAngle)
	}
	if res.ComfortIndex < StairComfortMin || res.ComfortIndex > StairComfortMax {
		res.warn("STAIR_COMFORT", "2R+T of %.0fmm is outside the %.0f–%.0fmm comfort range", res.ComfortIndex, StairComfortMin, StairComfortMax)
	}
	return res
}
