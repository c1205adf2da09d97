// Package ranklist provides models and repository for a user's personal
// ranked list of shops, and the manager that keeps it internally
// consistent under insert, delete, reorder, and reconciliation.
package ranklist

import (
	"encoding/json"
	"errors"
	"time"
)

// Common errors for ranking list operations.
var (
	// ErrEntryNotFound is returned when no entry exists for (owner, shop).
	ErrEntryNotFound = errors.New("ranking entry not found")

	// ErrDuplicateEntry is returned when inserting a shop the owner already ranked.
	ErrDuplicateEntry = errors.New("shop already ranked by owner")

	// ErrInvalidReorder is returned when a reorder payload is internally
	// inconsistent (duplicate shops, duplicate ranks, non-positive ranks).
	ErrInvalidReorder = errors.New("invalid reorder payload")

	// ErrInvalidTier is returned for a tier value outside the known set.
	ErrInvalidTier = errors.New("invalid satisfaction tier")
)

// Tier is the coarse three-valued satisfaction judgement attached to a
// ranking entry. Higher values sort earlier in the list: all Good entries
// rank above all OK entries, which rank above all Bad entries.
type Tier int

// Satisfaction tiers, ordered so that numeric descending order matches
// list order. The values mirror the persisted smallint column.
const (
	TierBad  Tier = 0
	TierOK   Tier = 1
	TierGood Tier = 2
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t == TierBad || t == TierOK || t == TierGood
}

// String returns the lowercase wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierGood:
		return "good"
	case TierOK:
		return "ok"
	case TierBad:
		return "bad"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the tier as its wire name.
func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidTier
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a tier wire name.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidTier
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier converts a wire name ("good", "ok", "bad") to a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "good":
		return TierGood, nil
	case "ok":
		return TierOK, nil
	case "bad":
		return TierBad, nil
	default:
		return 0, ErrInvalidTier
	}
}

// Entry is one row of a user's personal ranked list.
//
// Invariant, per owner: the set of Rank values is exactly 1..N where N is
// the owner's entry count, rank order and tier order co-vary (every Good
// entry ranks above every OK entry, every OK above every Bad), and exactly
// one entry exists per (OwnerID, ShopID).
type Entry struct {
	ID        string    `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	ShopID    int64     `json:"shop_id"`
	Rank      int       `json:"rank"`
	Tier      Tier      `json:"satisfaction_tier"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReorderItem is one (shop, rank, tier) tuple of a bulk reorder request.
type ReorderItem struct {
	ShopID int64 `json:"shop_id"`
	Rank   int   `json:"rank"`
	Tier   Tier  `json:"satisfaction_tier"`
}
