// Package taste provides the taste profile vector type and the
// similarity kernel used to compare two users' food preferences.
package taste

// Axis names for the seven taste dimensions, in canonical order.
const (
	AxisBoldness     = "boldness"
	AxisAcidity      = "acidity"
	AxisRichness     = "richness"
	AxisExperimental = "experimental"
	AxisSpiciness    = "spiciness"
	AxisSweetness    = "sweetness"
	AxisUmami        = "umami"
)

// Axes lists all taste axes in canonical order.
var Axes = []string{
	AxisBoldness,
	AxisAcidity,
	AxisRichness,
	AxisExperimental,
	AxisSpiciness,
	AxisSweetness,
	AxisUmami,
}

// Vector is a user's taste profile along the seven fixed axes.
// Values are nominally in [-2, +2]. A Vector is a value type: it is
// computed once per taste assessment and replaced wholesale on
// re-assessment, never mutated in place.
type Vector struct {
	Boldness     float64 `json:"boldness"`
	Acidity      float64 `json:"acidity"`
	Richness     float64 `json:"richness"`
	Experimental float64 `json:"experimental"`
	Spiciness    float64 `json:"spiciness"`
	Sweetness    float64 `json:"sweetness"`
	Umami        float64 `json:"umami"`
}

// FromMap builds a Vector from an axis-name keyed map, such as the
// decoded JSON document stored on a user profile. Missing axes are
// treated as 0; unknown keys are ignored.
func FromMap(m map[string]float64) Vector {
	return Vector{
		Boldness:     m[AxisBoldness],
		Acidity:      m[AxisAcidity],
		Richness:     m[AxisRichness],
		Experimental: m[AxisExperimental],
		Spiciness:    m[AxisSpiciness],
		Sweetness:    m[AxisSweetness],
		Umami:        m[AxisUmami],
	}
}

// ToMap returns the vector as an axis-name keyed map.
func (v Vector) ToMap() map[string]float64 {
	return map[string]float64{
		AxisBoldness:     v.Boldness,
		AxisAcidity:      v.Acidity,
		AxisRichness:     v.Richness,
		AxisExperimental: v.Experimental,
		AxisSpiciness:    v.Spiciness,
		AxisSweetness:    v.Sweetness,
		AxisUmami:        v.Umami,
	}
}

// axes returns the vector values in canonical axis order.
func (v Vector) axes() [7]float64 {
	return [7]float64{
		v.Boldness,
		v.Acidity,
		v.Richness,
		v.Experimental,
		v.Spiciness,
		v.Sweetness,
		v.Umami,
	}
}
