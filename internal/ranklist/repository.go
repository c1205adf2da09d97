package ranklist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines storage operations for ranking entries. Every
// mutating operation is atomic: it either applies completely or leaves
// the stored state untouched. Serialization of concurrent mutations per
// owner is the Manager's responsibility, not the repository's.
type Repository interface {
	// ListByOwner returns all of an owner's entries ordered by rank ascending.
	ListByOwner(ctx context.Context, ownerID int64) ([]*Entry, error)

	// Get retrieves the entry for (owner, shop). Returns ErrEntryNotFound
	// if the owner has not ranked the shop.
	Get(ctx context.Context, ownerID, shopID int64) (*Entry, error)

	// InsertAt inserts the entry at entry.Rank, shifting every existing
	// entry of the same owner with rank >= entry.Rank up by one. Returns
	// ErrDuplicateEntry if the owner already ranked the shop.
	InsertAt(ctx context.Context, entry *Entry) error

	// DeleteAndCloseGap removes the (owner, shop) entry and decrements the
	// rank of every entry ranked after it. Returns the deleted entry, or
	// ErrEntryNotFound.
	DeleteAndCloseGap(ctx context.Context, ownerID, shopID int64) (*Entry, error)

	// ApplyRanks updates rank and tier for the given (shop, rank, tier)
	// tuples of one owner in a single atomic unit. Tuples referencing
	// shops the owner has not ranked cause ErrEntryNotFound and no writes.
	ApplyRanks(ctx context.Context, ownerID int64, items []ReorderItem) error

	// CountByOwner returns the number of entries the owner has.
	CountByOwner(ctx context.Context, ownerID int64) (int, error)

	// Owners returns the IDs of all users that have at least one entry.
	Owners(ctx context.Context) ([]int64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex; used by tests and local development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[int64]map[int64]*Entry // ownerID -> shopID -> Entry
}

// NewInMemoryRepository creates a new in-memory ranking repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[int64]map[int64]*Entry),
	}
}

// ListByOwner returns all of an owner's entries ordered by rank ascending.
func (r *InMemoryRepository) ListByOwner(ctx context.Context, ownerID int64) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owned := r.entries[ownerID]
	result := make([]*Entry, 0, len(owned))
	for _, e := range owned {
		entryCopy := *e
		result = append(result, &entryCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})

	return result, nil
}

// Get retrieves the entry for (owner, shop).
func (r *InMemoryRepository) Get(ctx context.Context, ownerID, shopID int64) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ownerID][shopID]
	if !ok {
		return nil, ErrEntryNotFound
	}

	entryCopy := *e
	return &entryCopy, nil
}

// InsertAt inserts the entry at entry.Rank, shifting later entries up by one.
func (r *InMemoryRepository) InsertAt(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.entries[entry.OwnerID]
	if owned == nil {
		owned = make(map[int64]*Entry)
		r.entries[entry.OwnerID] = owned
	}

	if _, exists := owned[entry.ShopID]; exists {
		return ErrDuplicateEntry
	}

	now := time.Now()
	for _, e := range owned {
		if e.Rank >= entry.Rank {
			e.Rank++
			e.UpdatedAt = now
		}
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.UpdatedAt = now

	entryCopy := *entry
	owned[entry.ShopID] = &entryCopy

	return nil
}

// DeleteAndCloseGap removes the (owner, shop) entry and closes the rank gap.
func (r *InMemoryRepository) DeleteAndCloseGap(ctx context.Context, ownerID, shopID int64) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.entries[ownerID]
	e, ok := owned[shopID]
	if !ok {
		return nil, ErrEntryNotFound
	}

	deleted := *e
	delete(owned, shopID)

	now := time.Now()
	for _, other := range owned {
		if other.Rank > deleted.Rank {
			other.Rank--
			other.UpdatedAt = now
		}
	}

	return &deleted, nil
}

// ApplyRanks updates rank and tier for the given tuples atomically.
func (r *InMemoryRepository) ApplyRanks(ctx context.Context, ownerID int64, items []ReorderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := r.entries[ownerID]

	// Validate everything before touching any entry so the update is
	// all-or-nothing.
	for _, item := range items {
		if _, ok := owned[item.ShopID]; !ok {
			return ErrEntryNotFound
		}
	}

	now := time.Now()
	for _, item := range items {
		e := owned[item.ShopID]
		e.Rank = item.Rank
		e.Tier = item.Tier
		e.UpdatedAt = now
	}

	return nil
}

// CountByOwner returns the number of entries the owner has.
func (r *InMemoryRepository) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries[ownerID]), nil
}

// Owners returns the IDs of all users that have at least one entry.
func (r *InMemoryRepository) Owners(ctx context.Context) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make([]int64, 0, len(r.entries))
	for id, owned := range r.entries {
		if len(owned) > 0 {
			owners = append(owners, id)
		}
	}

	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	return owners, nil
}
