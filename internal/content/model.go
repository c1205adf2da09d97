// Package content provides models and storage for free-text and media
// records users attach to shop visits.
package content

import (
	"errors"
	"time"
)

// Common errors for content operations.
var (
	// ErrContentNotFound is returned when no content exists for the ID.
	ErrContentNotFound = errors.New("content not found")
)

// Content types.
const (
	// TypeVisitRecord is content documenting a shop visit. Visit records
	// are owned by the ranking entry for the same (owner, shop) and are
	// soft-deleted when that entry is deleted.
	TypeVisitRecord = "visit_record"

	// TypePost is free-standing content not tied to a ranking entry.
	TypePost = "post"
)

// Record is one piece of user content. Visit records link to their
// owning ranking entry explicitly via RankingEntryID; the (OwnerID,
// ShopID) pair is kept denormalized for query convenience but the entry
// ID is the authoritative relation.
type Record struct {
	ID             string  `json:"id"`
	OwnerID        int64   `json:"owner_id"`
	Type           string  `json:"type"`
	Text           string  `json:"text,omitempty"`
	Images         []string `json:"images,omitempty"`
	ShopID         *int64  `json:"shop_id,omitempty"`          // set for visit records
	RankingEntryID *string `json:"ranking_entry_id,omitempty"` // set for visit records

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}
