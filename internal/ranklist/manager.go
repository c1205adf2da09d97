package ranklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ContentStore is the collaborator holding content attached to shop
// visits. Deleting a ranking entry soft-deletes the owner's visit
// records for that shop ("symbiotic deletion").
type ContentStore interface {
	// SoftDeleteVisitRecords soft-deletes all visit-record content the
	// owner attached to the shop and returns how many records were
	// affected. Zero matches is not an error.
	SoftDeleteVisitRecords(ctx context.Context, ownerID, shopID int64) (int, error)
}

// Manager enforces the ranking list invariant across insert, delete,
// reorder, and reconciliation.
//
// Mutations against the same owner are serialized through a per-owner
// lock: concurrent edits to one list never interleave, while different
// owners' lists proceed independently. Each mutation maps to a single
// atomic repository operation, so a failure leaves the prior valid state
// intact.
type Manager struct {
	repo    Repository
	content ContentStore // optional; nil disables cascade
	logger  *slog.Logger
	metrics *Metrics // optional

	mu         sync.Mutex
	ownerLocks map[int64]*sync.Mutex
}

// NewManager creates a Manager on top of the given repository. content
// and metrics may be nil.
func NewManager(repo Repository, content ContentStore, logger *slog.Logger, metrics *Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:       repo,
		content:    content,
		logger:     logger,
		metrics:    metrics,
		ownerLocks: make(map[int64]*sync.Mutex),
	}
}

// lockOwner returns the mutex serializing mutations for one owner,
// creating it on first use.
func (m *Manager) lockOwner(ownerID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.ownerLocks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		m.ownerLocks[ownerID] = lock
	}
	return lock
}

// observe records metrics for a completed mutation.
func (m *Manager) observe(operation string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	m.metrics.IncMutation(operation, status)
	m.metrics.ObserveMutationDuration(operation, time.Since(start).Seconds())
}

// List returns the owner's entries ordered by rank ascending.
func (m *Manager) List(ctx context.Context, ownerID int64) ([]*Entry, error) {
	return m.repo.ListByOwner(ctx, ownerID)
}

// Insert records a new judgement for a shop, placing it at the end of
// its satisfaction tier. Entries ranked at or after the insertion point
// shift down by one in the same atomic unit.
func (m *Manager) Insert(ctx context.Context, ownerID, shopID int64, tier Tier) (entry *Entry, err error) {
	start := time.Now()
	defer func() { m.observe(OpInsert, start, err) }()

	if !tier.Valid() {
		return nil, ErrInvalidTier
	}

	lock := m.lockOwner(ownerID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load list for insert: %w", err)
	}

	entry = &Entry{
		OwnerID: ownerID,
		ShopID:  shopID,
		Rank:    insertionRank(existing, tier),
		Tier:    tier,
	}

	if err = m.repo.InsertAt(ctx, entry); err != nil {
		return nil, err
	}

	m.logger.Debug("ranking entry inserted",
		"owner_id", ownerID,
		"shop_id", shopID,
		"rank", entry.Rank,
		"tier", tier.String(),
	)

	return entry, nil
}

// InsertResult reports the outcome of a batch insert.
type InsertResult struct {
	Inserted int     // Entries created
	Skipped  []int64 // Shop IDs the owner had already ranked
}

// BatchItem is one judgement of a batch insert request.
type BatchItem struct {
	ShopID int64 `json:"shop_id"`
	Tier   Tier  `json:"satisfaction_tier"`
}

// InsertMany records a set of judgements, best first: items are applied
// in tier order (Good, OK, Bad) so each lands at the end of its tier.
// Shops the owner has already ranked are skipped, not an error. Each
// item is its own atomic insert; a storage failure stops the batch and
// reports what was applied so far.
func (m *Manager) InsertMany(ctx context.Context, ownerID int64, items []BatchItem) (*InsertResult, error) {
	sorted := make([]BatchItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tier > sorted[j].Tier
	})

	result := &InsertResult{}
	for _, item := range sorted {
		if _, err := m.Insert(ctx, ownerID, item.ShopID, item.Tier); err != nil {
			if errors.Is(err, ErrDuplicateEntry) {
				result.Skipped = append(result.Skipped, item.ShopID)
				continue
			}
			return result, err
		}
		result.Inserted++
	}

	return result, nil
}

// Delete removes the owner's judgement for a shop, closes the resulting
// rank gap, and soft-deletes the visit-record content attached to the
// same (owner, shop). The cascade is best-effort: no matching content is
// a no-op, and a cascade failure after a committed delete is logged, not
// surfaced (the entry removal already holds).
func (m *Manager) Delete(ctx context.Context, ownerID, shopID int64) (err error) {
	start := time.Now()
	defer func() { m.observe(OpDelete, start, err) }()

	lock := m.lockOwner(ownerID)
	lock.Lock()
	defer lock.Unlock()

	deleted, err := m.repo.DeleteAndCloseGap(ctx, ownerID, shopID)
	if err != nil {
		return err
	}

	if m.content != nil {
		affected, cascadeErr := m.content.SoftDeleteVisitRecords(ctx, ownerID, shopID)
		if cascadeErr != nil {
			m.logger.Error("cascade delete of visit records failed",
				"owner_id", ownerID,
				"shop_id", shopID,
				"error", cascadeErr,
			)
		} else if affected > 0 {
			m.logger.Info("cascade deleted visit records",
				"owner_id", ownerID,
				"shop_id", shopID,
				"count", affected,
			)
		}
	}

	m.logger.Debug("ranking entry deleted",
		"owner_id", ownerID,
		"shop_id", shopID,
		"rank", deleted.Rank,
	)

	return nil
}

// Reorder applies a full or partial set of (shop, rank, tier) tuples for
// one owner atomically.
//
// The payload itself is validated before any write: ranks must be
// positive, and no shop or rank may appear twice. When the payload
// covers the owner's entire list it must additionally describe a valid
// target state (contiguous ranks 1..N, tier order matching rank order).
// A partial payload's global consistency is the caller's responsibility.
func (m *Manager) Reorder(ctx context.Context, ownerID int64, items []ReorderItem) (err error) {
	start := time.Now()
	defer func() { m.observe(OpReorder, start, err) }()

	if err = validateReorderPayload(items); err != nil {
		return err
	}

	lock := m.lockOwner(ownerID)
	lock.Lock()
	defer lock.Unlock()

	count, err := m.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to count entries for reorder: %w", err)
	}

	if len(items) > count {
		return fmt.Errorf("%w: %d items for a list of %d", ErrInvalidReorder, len(items), count)
	}
	if len(items) == count {
		if err = validateFullReorder(items); err != nil {
			return err
		}
	}

	if err = m.repo.ApplyRanks(ctx, ownerID, items); err != nil {
		return err
	}

	m.logger.Debug("ranking list reordered",
		"owner_id", ownerID,
		"items", len(items),
	)

	return nil
}

// validateReorderPayload checks the internal consistency of a reorder
// request without touching storage.
func validateReorderPayload(items []ReorderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidReorder)
	}

	seenShops := make(map[int64]struct{}, len(items))
	seenRanks := make(map[int]struct{}, len(items))

	for _, item := range items {
		if item.Rank < 1 {
			return fmt.Errorf("%w: rank %d for shop %d", ErrInvalidReorder, item.Rank, item.ShopID)
		}
		if !item.Tier.Valid() {
			return fmt.Errorf("%w: tier %d for shop %d", ErrInvalidTier, item.Tier, item.ShopID)
		}
		if _, dup := seenShops[item.ShopID]; dup {
			return fmt.Errorf("%w: duplicate shop %d", ErrInvalidReorder, item.ShopID)
		}
		if _, dup := seenRanks[item.Rank]; dup {
			return fmt.Errorf("%w: duplicate rank %d", ErrInvalidReorder, item.Rank)
		}
		seenShops[item.ShopID] = struct{}{}
		seenRanks[item.Rank] = struct{}{}
	}

	return nil
}

// validateFullReorder checks that a payload covering the whole list
// describes a valid target state: contiguous ranks 1..N and tiers
// non-increasing as rank increases.
func validateFullReorder(items []ReorderItem) error {
	sorted := make([]ReorderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	for i, item := range sorted {
		if item.Rank != i+1 {
			return fmt.Errorf("%w: ranks not contiguous at %d", ErrInvalidReorder, item.Rank)
		}
		if i > 0 && item.Tier > sorted[i-1].Tier {
			return fmt.Errorf("%w: tier order broken at rank %d", ErrInvalidReorder, item.Rank)
		}
	}

	return nil
}

// PlanReconcile computes the reconciliation for an owner without writing:
// entries re-sorted by tier descending then existing rank ascending
// (preserving manual order within a tier), ranks reassigned 1..N, and
// only the entries whose rank actually changes are returned.
func (m *Manager) PlanReconcile(ctx context.Context, ownerID int64) ([]ReorderItem, error) {
	entries, err := m.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load list for reconcile: %w", err)
	}

	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tier != sorted[j].Tier {
			return sorted[i].Tier > sorted[j].Tier
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	var changed []ReorderItem
	for i, e := range sorted {
		newRank := i + 1
		if e.Rank != newRank {
			changed = append(changed, ReorderItem{
				ShopID: e.ShopID,
				Rank:   newRank,
				Tier:   e.Tier,
			})
		}
	}

	return changed, nil
}

// Reconcile re-sorts the owner's entire list and reassigns contiguous
// ranks, writing only rows whose rank changed. Running it twice in a row
// produces no further changes. Returns the number of rows rewritten.
func (m *Manager) Reconcile(ctx context.Context, ownerID int64) (changed int, err error) {
	start := time.Now()
	defer func() { m.observe(OpReconcile, start, err) }()

	lock := m.lockOwner(ownerID)
	lock.Lock()
	defer lock.Unlock()

	plan, err := m.PlanReconcile(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(plan) == 0 {
		return 0, nil
	}

	if err = m.repo.ApplyRanks(ctx, ownerID, plan); err != nil {
		return 0, err
	}

	if m.metrics != nil {
		m.metrics.AddReconcileRows(len(plan))
	}
	m.logger.Info("ranking list reconciled",
		"owner_id", ownerID,
		"rows_changed", len(plan),
	)

	return len(plan), nil
}

// insertionRank returns the rank a new entry of the given tier should
// take: directly after the last existing entry of the same or a better
// tier. Assumes entries already satisfy the list invariant.
func insertionRank(entries []*Entry, tier Tier) int {
	rank := 1
	for _, e := range entries {
		if e.Tier >= tier && e.Rank >= rank {
			rank = e.Rank + 1
		}
	}
	return rank
}
