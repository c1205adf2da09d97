package taste

import "math"

// Sigma is the width of the Gaussian kernel used by Similarity.
// It controls how quickly similarity falls off with taste distance.
const Sigma = 5.0

// Similarity computes how alike two taste vectors are, on a 0-100 scale.
//
// The squared Euclidean distance is summed over all seven axes and passed
// through a Gaussian radial basis transform:
//
//	similarity = 100 * exp(-d² / (2σ²))
//
// Properties: symmetric, Similarity(v, v) == 100, strictly decreasing in
// distance, approaches 0 asymptotically but never reaches it. Callers are
// responsible for handling absent vectors; the kernel itself has no error
// conditions.
func Similarity(a, b Vector) float64 {
	av, bv := a.axes(), b.axes()

	var sumSqDiff float64
	for i := range av {
		d := av[i] - bv[i]
		sumSqDiff += d * d
	}

	return 100 * math.Exp(-sumSqDiff/(2*Sigma*Sigma))
}
