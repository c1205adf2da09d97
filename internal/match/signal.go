// Package match implements the personalized match-score engine: it
// converts other users' ranking signals and taste similarity into a
// single calibrated 0-100 prediction of how much a viewer would like a
// shop.
package match

import (
	"github.com/edwds/mimy/internal/ranklist"
	"github.com/edwds/mimy/internal/taste"
)

// ReviewerSignal is one reviewer's recorded experience with a shop,
// assembled per query from their persisted ranking row. Transient: it is
// never stored in this shape.
type ReviewerSignal struct {
	ReviewerID       int64          `json:"reviewer_id"`
	RankPosition     int            `json:"rank_position"`      // 1 = best
	TotalRankedCount int            `json:"total_ranked_count"` // size of the reviewer's own list
	Tier             *ranklist.Tier `json:"satisfaction_tier,omitempty"`
	Taste            *taste.Vector  `json:"taste,omitempty"`
}

// Evaluation is the normalized form of one reviewer signal.
type Evaluation struct {
	Eligible     bool    // whether the signal is trustworthy at all
	Percentile   float64 // position within the reviewer's own list, 1.0 = top
	Satisfaction float64 // tier-conditioned satisfaction in [-1, 1]
}

// Evaluate normalizes a raw reviewer signal.
//
// A signal is eligible only when the reviewer's own list has at least
// eligibilityFloor entries; rank position on a short list is too noisy
// to serve as a proxy for how much they liked the shop.
//
// Satisfaction is linear in percentile, conditioned on the tier so the
// three tiers produce overlapping but distinguishable ranges:
//
//	Good:    -0.3 + 1.0p  -> [-0.3, +0.7]
//	OK:      -0.5 + 0.6p  -> [-0.5, +0.1]
//	Bad:     -1.0 + 0.5p  -> [-1.0, -0.5]
//	unknown:  2p - 1      -> [-1, +1] (legacy rows without a tier)
//
// A Good-tier shop near the bottom of a very long list still registers
// negative satisfaction, correcting for reviewers who rarely use the
// negative tiers.
func Evaluate(s ReviewerSignal, eligibilityFloor int) Evaluation {
	eval := Evaluation{
		Eligible:   s.TotalRankedCount >= eligibilityFloor,
		Percentile: Percentile(s.RankPosition, s.TotalRankedCount),
	}
	eval.Satisfaction = satisfaction(s.Tier, eval.Percentile)
	return eval
}

// Percentile maps a rank position within a list of the given size to
// [0, 1], where 1.0 is the top of the list. A single-entry list always
// yields 1.0.
func Percentile(rankPosition, totalRankedCount int) float64 {
	if totalRankedCount <= 1 {
		return 1.0
	}
	return 1.0 - float64(rankPosition-1)/float64(totalRankedCount-1)
}

// satisfaction applies the tier-conditioned linear mapping.
func satisfaction(tier *ranklist.Tier, percentile float64) float64 {
	if tier == nil {
		return 2*percentile - 1
	}
	switch *tier {
	case ranklist.TierGood:
		return -0.3 + 1.0*percentile
	case ranklist.TierOK:
		return -0.5 + 0.6*percentile
	case ranklist.TierBad:
		return -1.0 + 0.5*percentile
	default:
		return 2*percentile - 1
	}
}
