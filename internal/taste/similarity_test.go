package taste

import (
	"math"
	"testing"
)

// TestSimilarityIdentity verifies that a vector is maximally similar to itself.
func TestSimilarityIdentity(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
	}{
		{
			name: "zero vector",
			v:    Vector{},
		},
		{
			name: "positive profile",
			v:    Vector{Boldness: 1.5, Acidity: 0.3, Richness: 2.0, Umami: 1.1},
		},
		{
			name: "negative profile",
			v:    Vector{Boldness: -2.0, Spiciness: -1.2, Sweetness: -0.4},
		},
		{
			name: "mixed extremes",
			v:    Vector{Boldness: 2, Acidity: -2, Richness: 2, Experimental: -2, Spiciness: 2, Sweetness: -2, Umami: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.v, tt.v)
			if math.Abs(got-100) > 1e-9 {
				t.Errorf("Similarity(v, v) = %f, want 100", got)
			}
		})
	}
}

// TestSimilaritySymmetry verifies Similarity(a, b) == Similarity(b, a).
func TestSimilaritySymmetry(t *testing.T) {
	tests := []struct {
		name string
		a    Vector
		b    Vector
	}{
		{
			name: "distinct profiles",
			a:    Vector{Boldness: 1.0, Acidity: -0.5, Umami: 2.0},
			b:    Vector{Boldness: -1.0, Richness: 0.7, Sweetness: 1.3},
		},
		{
			name: "one zero vector",
			a:    Vector{},
			b:    Vector{Experimental: 1.8, Spiciness: -1.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := Similarity(tt.a, tt.b)
			ba := Similarity(tt.b, tt.a)
			if math.Abs(ab-ba) > 1e-12 {
				t.Errorf("Similarity not symmetric: %f vs %f", ab, ba)
			}
		})
	}
}

// TestSimilarityDecreasesWithDistance verifies that moving further apart
// strictly lowers the similarity, and that it never reaches zero.
func TestSimilarityDecreasesWithDistance(t *testing.T) {
	base := Vector{}
	prev := Similarity(base, base)

	for _, boldness := range []float64{0.5, 1.0, 2.0, 4.0, 8.0} {
		other := Vector{Boldness: boldness}
		got := Similarity(base, other)
		if got >= prev {
			t.Errorf("similarity did not decrease: %f >= %f at boldness=%f", got, prev, boldness)
		}
		if got <= 0 {
			t.Errorf("similarity reached zero at boldness=%f", boldness)
		}
		prev = got
	}
}

// TestSimilarityKnownValue checks the kernel against a hand-computed value.
func TestSimilarityKnownValue(t *testing.T) {
	// Distance² = 25, so similarity = 100 * exp(-25/50) = 100 * exp(-0.5).
	a := Vector{Boldness: 5}
	b := Vector{}

	want := 100 * math.Exp(-0.5)
	got := Similarity(a, b)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Similarity = %f, want %f", got, want)
	}
}

// TestVectorMapRoundTrip verifies FromMap/ToMap preserve all axes.
func TestVectorMapRoundTrip(t *testing.T) {
	v := Vector{
		Boldness:     0.1,
		Acidity:      -0.2,
		Richness:     0.3,
		Experimental: -0.4,
		Spiciness:    0.5,
		Sweetness:    -0.6,
		Umami:        0.7,
	}

	got := FromMap(v.ToMap())
	if got != v {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, v)
	}
}

// TestFromMapMissingAxes verifies missing axes default to zero.
func TestFromMapMissingAxes(t *testing.T) {
	got := FromMap(map[string]float64{
		AxisBoldness: 1.5,
		"unknown":    9.9, // ignored
	})

	want := Vector{Boldness: 1.5}
	if got != want {
		t.Errorf("FromMap = %+v, want %+v", got, want)
	}
}
