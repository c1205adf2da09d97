package ranklist

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingContentStore captures cascade calls.
type recordingContentStore struct {
	mu    sync.Mutex
	calls [][2]int64 // (ownerID, shopID)
	err   error
}

func (s *recordingContentStore) SoftDeleteVisitRecords(ctx context.Context, ownerID, shopID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]int64{ownerID, shopID})
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func newTestManager(content ContentStore) *Manager {
	return NewManager(NewInMemoryRepository(), content, nil, nil)
}

func listOrder(t *testing.T, m *Manager, ownerID int64) []int64 {
	t.Helper()
	entries, err := m.List(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	out := make([]int64, len(entries))
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("position %d: rank = %d, want %d", i, e.Rank, i+1)
		}
		out[i] = e.ShopID
	}
	return out
}

func assertOrder(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("list has %d entries, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: shop %d, want %d (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestManager_InsertPlacesAtEndOfTier(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	inserts := []struct {
		shopID int64
		tier   Tier
	}{
		{10, TierGood},
		{20, TierBad},
		{30, TierGood}, // after 10, before the bad block
		{40, TierOK},   // between good and bad
		{50, TierOK},   // after 40
	}
	for _, ins := range inserts {
		if _, err := m.Insert(ctx, 1, ins.shopID, ins.tier); err != nil {
			t.Fatalf("Insert(shop=%d): %v", ins.shopID, err)
		}
	}

	assertOrder(t, listOrder(t, m, 1), []int64{10, 30, 40, 50, 20})
}

func TestManager_InsertRejectsInvalidTier(t *testing.T) {
	m := newTestManager(nil)

	if _, err := m.Insert(context.Background(), 1, 10, Tier(9)); !errors.Is(err, ErrInvalidTier) {
		t.Errorf("expected ErrInvalidTier, got %v", err)
	}
}

func TestManager_InsertDuplicate(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	if _, err := m.Insert(ctx, 1, 10, TierGood); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := m.Insert(ctx, 1, 10, TierBad); !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestManager_InsertMany(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	if _, err := m.Insert(ctx, 1, 20, TierOK); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	result, err := m.InsertMany(ctx, 1, []BatchItem{
		{ShopID: 30, Tier: TierBad},
		{ShopID: 10, Tier: TierGood},
		{ShopID: 20, Tier: TierGood}, // already ranked
	})
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	if result.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", result.Inserted)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != 20 {
		t.Errorf("skipped = %v, want [20]", result.Skipped)
	}

	assertOrder(t, listOrder(t, m, 1), []int64{10, 20, 30})
}

func TestManager_DeleteClosesGapAndCascades(t *testing.T) {
	content := &recordingContentStore{}
	m := newTestManager(content)
	ctx := context.Background()

	for _, shop := range []int64{10, 20, 30} {
		if _, err := m.Insert(ctx, 1, shop, TierGood); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := m.Delete(ctx, 1, 20); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	assertOrder(t, listOrder(t, m, 1), []int64{10, 30})

	if len(content.calls) != 1 || content.calls[0] != [2]int64{1, 20} {
		t.Errorf("cascade calls = %v, want [[1 20]]", content.calls)
	}
}

func TestManager_DeleteCascadeFailureDoesNotSurface(t *testing.T) {
	content := &recordingContentStore{err: errors.New("storage unavailable")}
	m := newTestManager(content)
	ctx := context.Background()

	if _, err := m.Insert(ctx, 1, 10, TierGood); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// The entry removal already committed; the cascade failure is logged only.
	if err := m.Delete(ctx, 1, 10); err != nil {
		t.Errorf("Delete: %v", err)
	}

	entries, err := m.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty list after delete, got %d entries", len(entries))
	}
}

func TestManager_DeleteMissing(t *testing.T) {
	m := newTestManager(nil)

	if err := m.Delete(context.Background(), 1, 99); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestManager_ReorderFullList(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	for _, ins := range []struct {
		shop int64
		tier Tier
	}{{10, TierGood}, {20, TierGood}, {30, TierOK}} {
		if _, err := m.Insert(ctx, 1, ins.shop, ins.tier); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	err := m.Reorder(ctx, 1, []ReorderItem{
		{ShopID: 20, Rank: 1, Tier: TierGood},
		{ShopID: 10, Rank: 2, Tier: TierGood},
		{ShopID: 30, Rank: 3, Tier: TierOK},
	})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	assertOrder(t, listOrder(t, m, 1), []int64{20, 10, 30})
}

func TestManager_ReorderValidation(t *testing.T) {
	tests := []struct {
		name    string
		items   []ReorderItem
		wantErr error
	}{
		{
			"empty_payload",
			nil,
			ErrInvalidReorder,
		},
		{
			"non_positive_rank",
			[]ReorderItem{{ShopID: 10, Rank: 0, Tier: TierGood}},
			ErrInvalidReorder,
		},
		{
			"duplicate_shop",
			[]ReorderItem{
				{ShopID: 10, Rank: 1, Tier: TierGood},
				{ShopID: 10, Rank: 2, Tier: TierGood},
			},
			ErrInvalidReorder,
		},
		{
			"duplicate_rank",
			[]ReorderItem{
				{ShopID: 10, Rank: 1, Tier: TierGood},
				{ShopID: 20, Rank: 1, Tier: TierGood},
			},
			ErrInvalidReorder,
		},
		{
			"invalid_tier",
			[]ReorderItem{{ShopID: 10, Rank: 1, Tier: Tier(9)}},
			ErrInvalidTier,
		},
		{
			"full_payload_non_contiguous",
			[]ReorderItem{
				{ShopID: 10, Rank: 1, Tier: TierGood},
				{ShopID: 20, Rank: 3, Tier: TierGood},
			},
			ErrInvalidReorder,
		},
		{
			"full_payload_tier_order_broken",
			[]ReorderItem{
				{ShopID: 10, Rank: 1, Tier: TierOK},
				{ShopID: 20, Rank: 2, Tier: TierGood},
			},
			ErrInvalidReorder,
		},
		{
			"more_items_than_entries",
			[]ReorderItem{
				{ShopID: 10, Rank: 1, Tier: TierGood},
				{ShopID: 20, Rank: 2, Tier: TierGood},
				{ShopID: 30, Rank: 3, Tier: TierGood},
			},
			ErrInvalidReorder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(nil)
			ctx := context.Background()
			for _, shop := range []int64{10, 20} {
				if _, err := m.Insert(ctx, 1, shop, TierGood); err != nil {
					t.Fatalf("Insert: %v", err)
				}
			}

			if err := m.Reorder(ctx, 1, tt.items); !errors.Is(err, tt.wantErr) {
				t.Errorf("Reorder error = %v, want %v", err, tt.wantErr)
			}

			assertOrder(t, listOrder(t, m, 1), []int64{10, 20})
		})
	}
}

func TestManager_ReorderPartialPayload(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	for _, shop := range []int64{10, 20, 30} {
		if _, err := m.Insert(ctx, 1, shop, TierGood); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// A partial payload skips the full-list target-state checks; the
	// caller is on the hook for global consistency.
	err := m.Reorder(ctx, 1, []ReorderItem{
		{ShopID: 10, Rank: 2, Tier: TierGood},
		{ShopID: 20, Rank: 1, Tier: TierGood},
	})
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}

	assertOrder(t, listOrder(t, m, 1), []int64{20, 10, 30})
}

func TestManager_ReconcileRestoresInvariant(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewManager(repo, nil, nil, nil)
	ctx := context.Background()

	// Seed a state that violates tier ordering: a bad entry ranked above
	// a good one, as a buggy client could have produced via partial
	// reorders.
	seed := []*Entry{
		{OwnerID: 1, ShopID: 10, Rank: 1, Tier: TierBad},
		{OwnerID: 1, ShopID: 20, Rank: 2, Tier: TierGood},
		{OwnerID: 1, ShopID: 30, Rank: 3, Tier: TierOK},
		{OwnerID: 1, ShopID: 40, Rank: 4, Tier: TierGood},
	}
	for _, e := range seed {
		if err := repo.InsertAt(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	changed, err := m.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if changed == 0 {
		t.Fatal("expected reconcile to rewrite rows")
	}

	// Tier blocks restored; existing relative order preserved within a
	// tier (20 stays ahead of 40).
	assertOrder(t, listOrder(t, m, 1), []int64{20, 40, 30, 10})
}

func TestManager_ReconcileIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	m := NewManager(repo, nil, nil, nil)
	ctx := context.Background()

	for _, e := range []*Entry{
		{OwnerID: 1, ShopID: 10, Rank: 1, Tier: TierBad},
		{OwnerID: 1, ShopID: 20, Rank: 2, Tier: TierGood},
	} {
		if err := repo.InsertAt(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	if _, err := m.Reconcile(ctx, 1); err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}

	changed, err := m.Reconcile(ctx, 1)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if changed != 0 {
		t.Errorf("second reconcile changed %d rows, want 0", changed)
	}
}

func TestManager_PlanReconcileOnConsistentList(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	for _, ins := range []struct {
		shop int64
		tier Tier
	}{{10, TierGood}, {20, TierOK}, {30, TierBad}} {
		if _, err := m.Insert(ctx, 1, ins.shop, ins.tier); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	plan, err := m.PlanReconcile(ctx, 1)
	if err != nil {
		t.Fatalf("PlanReconcile: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("expected an empty plan for a consistent list, got %v", plan)
	}
}

func TestManager_ConcurrentMutationsKeepInvariant(t *testing.T) {
	m := newTestManager(nil)
	ctx := context.Background()

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(shop int64, tier Tier) {
			defer wg.Done()
			if _, err := m.Insert(ctx, 1, shop, tier); err != nil {
				t.Errorf("Insert(shop=%d): %v", shop, err)
			}
		}(int64(i+1), Tier(i%3))
	}
	wg.Wait()

	entries, err := m.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("expected %d entries, got %d", n, len(entries))
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("position %d: rank = %d, want %d", i, e.Rank, i+1)
		}
		if i > 0 && e.Tier > entries[i-1].Tier {
			t.Errorf("tier order broken at rank %d", e.Rank)
		}
	}
}
