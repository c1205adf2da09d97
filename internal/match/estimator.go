package match

import (
	"math"

	"github.com/edwds/mimy/internal/taste"
)

// Params are the tunable knobs of the match-score estimator. They are
// passed explicitly at call time so tests can inject arbitrary parameter
// sets deterministically; there are no ambient lookups inside the
// estimator.
type Params struct {
	// Power is the exponent applied to the normalized taste similarity
	// when weighting a signal. Higher values concentrate influence on
	// reviewers whose taste closely matches the viewer's.
	Power float64

	// Alpha is the Bayesian prior weight: a pseudo-count of neutral
	// observations the weighted evidence must overcome. It keeps sparse
	// data from producing overconfident extreme scores.
	Alpha float64

	// MinReviewers is the minimum number of eligible signals required
	// before any score is produced at all.
	MinReviewers int

	// EligibilityFloor is the minimum personal-list size a reviewer must
	// have before their rank position is trusted as a signal.
	EligibilityFloor int
}

// Default parameter values.
const (
	DefaultPower            = 2.0
	DefaultAlpha            = 0.2
	DefaultMinReviewers     = 3
	DefaultEligibilityFloor = 100
)

// priorMean is the neutral prior the estimate shrinks toward.
const priorMean = 0.0

// DefaultParams returns the calibrated default parameters.
func DefaultParams() Params {
	return Params{
		Power:            DefaultPower,
		Alpha:            DefaultAlpha,
		MinReviewers:     DefaultMinReviewers,
		EligibilityFloor: DefaultEligibilityFloor,
	}
}

// ComputeScore estimates how much the viewer would like a shop from the
// given reviewer signals.
//
// Eligible signals (reviewer list size >= the floor) are weighted by
// taste similarity, (similarity/100)^power, and their satisfaction
// values averaged under Bayesian shrinkage toward a neutral prior:
//
//	raw = (alpha*0 + Σ(w·s)) / (alpha + Σw)
//
// so a single enthusiastic reviewer cannot swing the score to an
// extreme; scores only become confident with enough weighted evidence.
// The raw estimate in [-1, 1] maps to [0, 100], clamped and rounded to
// one decimal place.
//
// No-signal results (explicit, not zero and not neutral): fewer than
// MinReviewers eligible signals, a nil viewer vector, or zero total
// weight (no eligible signal carried a taste vector). Signals without a
// taste vector are skipped from the weighting but still count toward the
// MinReviewers check.
func ComputeScore(viewer *taste.Vector, signals []ReviewerSignal, params Params) Score {
	eligible := make([]ReviewerSignal, 0, len(signals))
	for _, s := range signals {
		if s.TotalRankedCount >= params.EligibilityFloor {
			eligible = append(eligible, s)
		}
	}

	if len(eligible) < params.MinReviewers {
		return NoSignal()
	}

	var weightedSum, totalWeight float64
	for _, s := range eligible {
		if viewer == nil || s.Taste == nil {
			continue
		}

		eval := Evaluate(s, params.EligibilityFloor)
		similarity := taste.Similarity(*viewer, *s.Taste)
		weight := math.Pow(similarity/100.0, params.Power)

		weightedSum += weight * eval.Satisfaction
		totalWeight += weight
	}

	if totalWeight == 0 {
		return NoSignal()
	}

	raw := (params.Alpha*priorMean + weightedSum) / (params.Alpha + totalWeight)
	score := clamp(50*(raw+1), 0, 100)

	return NewScore(round1(score))
}
