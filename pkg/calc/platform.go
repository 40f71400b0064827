package calc

import "math"

// Platform and guardrail limits (IBC 1015, OSHA 1910.29).
const (
	GuardRequiredHeight   = 762.0  // IBC 1015.2, walking surface height
	GuardMinHeight        = 1067.0 // IBC 1015.3
	GuardMaxHeight        = 1143.0 // OSHA 1910.29(b)(1), 42in + 3in
	ToeBoardHeight        = 89.0   // OSHA 1910.29(k)(1)
	PlatformMinDeck       = 6.0
	PlatformDefaultDeck   = 50.0
	PlatformMaxPostSpace  = 2438.0 // 8 ft
	platformMaxDeckAspect = 10.0
)

// PlatformInput describes an elevated rectangular platform.
type PlatformInput struct {
	Height        float64 // deck elevation above the floor
	Length        float64
	Width         float64
	DeckThickness float64 // zero selects PlatformDefaultDeck
	GuardHeight   float64 // zero selects GuardMinHeight
}

// PlatformResult holds the derived platform layout.
type PlatformResult struct {
	Result
	Height        float64 `json:"height"`
	DeckThickness float64 `json:"deckThickness"`
	GuardRequired bool    `json:"guardRequired"`
	GuardHeight   float64 `json:"guardHeight"`
	MidrailHeight float64 `json:"midrailHeight"`
	PostCount     int     `json:"postCount"` // per long side
	PostSpacing   float64 `json:"postSpacing"`
	DeckArea      float64 `json:"deckArea"` // m²
}

// Platform derives deck, post and guardrail dimensions.
func Platform(in PlatformInput) PlatformResult {
	res := PlatformResult{Result: newResult(), Height: in.Height}
	ok := positive(&res.Result, "length", in.Length)
	ok = positive(&res.Result, "width", in.Width) && ok
	if in.Height < 0 {
		res.fail("INVALID_INPUT", "platform height must not be negative, got %g", in.Height)
		ok = false
	}
	if !ok {
		return res
	}

	res.DeckThickness = in.DeckThickness
	if res.DeckThickness <= 0 {
		res.DeckThickness = PlatformDefaultDeck
	}
	res.GuardHeight = in.GuardHeight
	if res.GuardHeight <= 0 {
		res.GuardHeight = GuardMinHeight
	}
	res.GuardRequired = in.Height > GuardRequiredHeight
	res.MidrailHeight = res.GuardHeight / 2
	long := math.Max(in.Length, in.Width)
	res.PostCount = int(math.Ceil(long/PlatformMaxPostSpace)) + 1
	res.PostSpacing = long / float64(res.PostCount-1)
	res.DeckArea = in.Length * in.Width / 1e6

	if res.DeckThickness < PlatformMinDeck {
		res.fail("PLATFORM_DECK", "deck thickness %.0fmm is below the %.0fmm minimum", res.DeckThickness, PlatformMinDeck)
	}
	if res.GuardRequired && res.GuardHeight < GuardMinHeight {
		res.fail("GUARD_HEIGHT", "guard height %.0fmm is below code minimum of %.0fmm (IBC 1015.3)", res.GuardHeight, GuardMinHeight)
	}
	if res.GuardRequired && res.GuardHeight > GuardMaxHeight {
		res.warn("GUARD_HEIGHT", "guard height %.0fmm exceeds %.0fmm (OSHA 1910.29(b)(1))", res.GuardHeight, GuardMaxHeight)
	}
	if long/math.Min(in.Length, in.Width) > platformMaxDeckAspect {
		res.warn("PLATFORM_ASPECT", "deck aspect ratio exceeds %.0f:1; consider intermediate supports", platformMaxDeckAspect)
	}
	return res
}
