package geometry

import "strings"

// Material describes what a component is made of. Density drives weight.
type Material struct {
	Name    string  `json:"name"`
	Density float64 `json:"density"` // kg/m³
}

// Common structural materials.
var (
	Steel          = Material{Name: "steel", Density: 7850}
	StainlessSteel = Material{Name: "stainless-steel", Density: 8000}
	Aluminum       = Material{Name: "aluminum", Density: 2700}
	Concrete       = Material{Name: "concrete", Density: 2400}
	Timber         = Material{Name: "timber", Density: 500}
	FRP            = Material{Name: "frp", Density: 1900}
)

var materials = map[string]Material{
	Steel.Name:          Steel,
	StainlessSteel.Name: StainlessSteel,
	Aluminum.Name:       Aluminum,
	Concrete.Name:       Concrete,
	Timber.Name:         Timber,
	FRP.Name:            FRP,
	// aliases
	"aluminium": Aluminum,
	"wood":      Timber,
	"stainless": StainlessSteel,
}

// LookupMaterial returns a known material by case-insensitive name.
func LookupMaterial(name string) (Material, bool) {
	m, ok := materials[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}
