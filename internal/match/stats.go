package match

import (
	"context"
	"fmt"

	"github.com/edwds/mimy/internal/ranklist"
)

// OwnRankingRow is the viewer's own ranking position for a shop, as read
// from their personal list.
type OwnRankingRow struct {
	Rank  int
	Total int
	Tier  ranklist.Tier
}

// OwnRankingSource resolves the viewer's own ranking row for a shop.
// Returns (nil, nil) when the viewer has not ranked the shop.
type OwnRankingSource interface {
	GetOwnRankingRow(ctx context.Context, userID, shopID int64) (*OwnRankingRow, error)
}

// OwnStat is the viewer's own standing for a shop they ranked: where it
// sits in their personal list, expressed both as a percentile and as a
// "Top X%" figure. This is a simple read path over the viewer's own
// data, unrelated to match-score estimation.
type OwnStat struct {
	Rank       int           `json:"rank"`
	Total      int           `json:"total"`
	Tier       ranklist.Tier `json:"satisfaction_tier"`
	Percentile float64       `json:"percentile"`  // 1.0 = top of the list
	TopPercent float64       `json:"top_percent"` // rank/total as a percentage
}

// ComputeOwnStat derives the stat from a rank position and list size,
// using the same percentile formula the signal evaluator uses.
func ComputeOwnStat(rank, total int, tier ranklist.Tier) OwnStat {
	topPercent := 100.0
	if total > 0 {
		topPercent = round1(100 * float64(rank) / float64(total))
	}
	return OwnStat{
		Rank:       rank,
		Total:      total,
		Tier:       tier,
		Percentile: Percentile(rank, total),
		TopPercent: topPercent,
	}
}

// OwnStatFor fetches the viewer's ranking row for a shop and derives the
// stat. Returns (nil, nil) when the viewer has not ranked the shop.
func OwnStatFor(ctx context.Context, source OwnRankingSource, userID, shopID int64) (*OwnStat, error) {
	row, err := source.GetOwnRankingRow(ctx, userID, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to read own ranking row: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	stat := ComputeOwnStat(row.Rank, row.Total, row.Tier)
	return &stat, nil
}
