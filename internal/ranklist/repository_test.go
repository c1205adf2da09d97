package ranklist

import (
	"context"
	"errors"
	"testing"
)

func mustInsert(t *testing.T, repo Repository, ownerID, shopID int64, rank int, tier Tier) {
	t.Helper()
	err := repo.InsertAt(context.Background(), &Entry{
		OwnerID: ownerID,
		ShopID:  shopID,
		Rank:    rank,
		Tier:    tier,
	})
	if err != nil {
		t.Fatalf("InsertAt(owner=%d, shop=%d, rank=%d): %v", ownerID, shopID, rank, err)
	}
}

func ranksByShop(t *testing.T, repo Repository, ownerID int64) map[int64]int {
	t.Helper()
	entries, err := repo.ListByOwner(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	out := make(map[int64]int, len(entries))
	for _, e := range entries {
		out[e.ShopID] = e.Rank
	}
	return out
}

func TestInMemoryRepository_InsertAtShifts(t *testing.T) {
	repo := NewInMemoryRepository()

	mustInsert(t, repo, 1, 10, 1, TierGood)
	mustInsert(t, repo, 1, 20, 2, TierGood)
	mustInsert(t, repo, 1, 30, 3, TierOK)

	// Insert in the middle: everything at or after rank 2 shifts up.
	mustInsert(t, repo, 1, 40, 2, TierGood)

	want := map[int64]int{10: 1, 40: 2, 20: 3, 30: 4}
	got := ranksByShop(t, repo, 1)
	for shop, rank := range want {
		if got[shop] != rank {
			t.Errorf("shop %d: rank = %d, want %d", shop, got[shop], rank)
		}
	}
}

func TestInMemoryRepository_InsertDuplicate(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)

	err := repo.InsertAt(context.Background(), &Entry{OwnerID: 1, ShopID: 10, Rank: 1, Tier: TierBad})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("expected ErrDuplicateEntry, got %v", err)
	}
}

func TestInMemoryRepository_InsertAssignsID(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)

	e, err := repo.Get(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.ID == "" {
		t.Error("expected an ID to be assigned on insert")
	}
	if e.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set on insert")
	}
}

func TestInMemoryRepository_DeleteAndCloseGap(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)
	mustInsert(t, repo, 1, 20, 2, TierGood)
	mustInsert(t, repo, 1, 30, 3, TierOK)

	deleted, err := repo.DeleteAndCloseGap(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("DeleteAndCloseGap: %v", err)
	}
	if deleted.ShopID != 20 || deleted.Rank != 2 {
		t.Errorf("unexpected deleted entry: %+v", deleted)
	}

	want := map[int64]int{10: 1, 30: 2}
	got := ranksByShop(t, repo, 1)
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for shop, rank := range want {
		if got[shop] != rank {
			t.Errorf("shop %d: rank = %d, want %d", shop, got[shop], rank)
		}
	}
}

func TestInMemoryRepository_DeleteMissing(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.DeleteAndCloseGap(context.Background(), 1, 99); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ApplyRanksAtomicity(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)
	mustInsert(t, repo, 1, 20, 2, TierOK)

	// One tuple references a shop the owner never ranked: nothing may change.
	err := repo.ApplyRanks(context.Background(), 1, []ReorderItem{
		{ShopID: 10, Rank: 2, Tier: TierGood},
		{ShopID: 99, Rank: 1, Tier: TierGood},
	})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	got := ranksByShop(t, repo, 1)
	if got[10] != 1 || got[20] != 2 {
		t.Errorf("failed ApplyRanks must leave state untouched, got %v", got)
	}
}

func TestInMemoryRepository_ApplyRanksUpdatesTier(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)

	err := repo.ApplyRanks(context.Background(), 1, []ReorderItem{
		{ShopID: 10, Rank: 1, Tier: TierBad},
	})
	if err != nil {
		t.Fatalf("ApplyRanks: %v", err)
	}

	e, err := repo.Get(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Tier != TierBad {
		t.Errorf("tier = %v, want %v", e.Tier, TierBad)
	}
}

func TestInMemoryRepository_OwnersAndCounts(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 2, 10, 1, TierGood)
	mustInsert(t, repo, 1, 10, 1, TierGood)
	mustInsert(t, repo, 1, 20, 2, TierOK)

	owners, err := repo.Owners(context.Background())
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if len(owners) != 2 || owners[0] != 1 || owners[1] != 2 {
		t.Errorf("owners = %v, want [1 2]", owners)
	}

	count, err := repo.CountByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("CountByOwner: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestInMemoryRepository_ListReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	mustInsert(t, repo, 1, 10, 1, TierGood)

	entries, err := repo.ListByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	entries[0].Rank = 999

	e, err := repo.Get(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Rank != 1 {
		t.Error("mutating a listed entry leaked into the repository")
	}
}
