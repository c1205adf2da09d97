// Package profile provides read access to user taste profiles and the
// assembled reviewer signals the match-score engine consumes.
package profile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/edwds/mimy/internal/match"
	"github.com/edwds/mimy/internal/ranklist"
	"github.com/edwds/mimy/internal/taste"
)

// VectorStore provides access to users' taste vectors.
type VectorStore interface {
	// GetTasteVector returns the user's taste vector, or (nil, nil) when
	// the user has not completed a taste assessment.
	GetTasteVector(ctx context.Context, userID int64) (*taste.Vector, error)

	// SetTasteVector replaces the user's taste vector wholesale. Vectors
	// are immutable once computed; a re-assessment swaps the whole
	// document.
	SetTasteVector(ctx context.Context, userID int64, v taste.Vector) error
}

// InMemorySource is an in-memory implementation of the read interfaces
// the match engine consumes (match.SignalSource, match.OwnRankingSource)
// plus VectorStore. It assembles reviewer signals from a ranking
// repository the same way the SQL source does, and is used by tests and
// local development.
type InMemorySource struct {
	mu      sync.RWMutex
	vectors map[int64]taste.Vector

	rankings ranklist.Repository
}

// NewInMemorySource creates an in-memory profile source reading ranking
// rows from the given repository.
func NewInMemorySource(rankings ranklist.Repository) *InMemorySource {
	return &InMemorySource{
		vectors:  make(map[int64]taste.Vector),
		rankings: rankings,
	}
}

// GetTasteVector returns the user's taste vector, or (nil, nil) when absent.
func (s *InMemorySource) GetTasteVector(ctx context.Context, userID int64) (*taste.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vectors[userID]
	if !ok {
		return nil, nil
	}
	vectorCopy := v
	return &vectorCopy, nil
}

// SetTasteVector replaces the user's taste vector wholesale.
func (s *InMemorySource) SetTasteVector(ctx context.Context, userID int64, v taste.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vectors[userID] = v
	return nil
}

// GetReviewerSignals assembles reviewer signals for the candidate shops,
// keeping only reviewers whose own list size meets eligibilityFloor.
func (s *InMemorySource) GetReviewerSignals(ctx context.Context, shopIDs []int64, eligibilityFloor int) (map[int64][]match.ReviewerSignal, error) {
	wanted := make(map[int64]struct{}, len(shopIDs))
	for _, id := range shopIDs {
		wanted[id] = struct{}{}
	}

	owners, err := s.rankings.Owners(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[int64][]match.ReviewerSignal)
	for _, ownerID := range owners {
		entries, err := s.rankings.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if len(entries) < eligibilityFloor {
			continue
		}

		vector, err := s.GetTasteVector(ctx, ownerID)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if _, ok := wanted[e.ShopID]; !ok {
				continue
			}
			tier := e.Tier
			result[e.ShopID] = append(result[e.ShopID], match.ReviewerSignal{
				ReviewerID:       ownerID,
				RankPosition:     e.Rank,
				TotalRankedCount: len(entries),
				Tier:             &tier,
				Taste:            vector,
			})
		}
	}

	// Stable ordering keeps test output deterministic.
	for shopID := range result {
		signals := result[shopID]
		sort.Slice(signals, func(i, j int) bool {
			return signals[i].ReviewerID < signals[j].ReviewerID
		})
	}

	return result, nil
}

// GetOwnRankingRow returns the user's own ranking position for a shop,
// or (nil, nil) when the user has not ranked it.
func (s *InMemorySource) GetOwnRankingRow(ctx context.Context, userID, shopID int64) (*match.OwnRankingRow, error) {
	entry, err := s.rankings.Get(ctx, userID, shopID)
	if err != nil {
		if errors.Is(err, ranklist.ErrEntryNotFound) {
			return nil, nil
		}
		return nil, err
	}

	total, err := s.rankings.CountByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &match.OwnRankingRow{
		Rank:  entry.Rank,
		Total: total,
		Tier:  entry.Tier,
	}, nil
}
