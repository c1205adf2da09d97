package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store defines storage operations for content records.
type Store interface {
	// Create inserts a new record with a generated UUID.
	Create(ctx context.Context, record *Record) error

	// GetByID retrieves a record by its UUID, excluding soft-deleted
	// records.
	GetByID(ctx context.Context, id string) (*Record, error)

	// ListVisitRecords returns the owner's non-deleted visit records for
	// a shop, newest first.
	ListVisitRecords(ctx context.Context, ownerID, shopID int64) ([]*Record, error)

	// SoftDeleteVisitRecords soft-deletes all of the owner's visit
	// records for a shop and returns how many were affected. Zero
	// matches is a no-op, not an error.
	SoftDeleteVisitRecords(ctx context.Context, ownerID, shopID int64) (int, error)
}

// InMemoryStore is an in-memory implementation of Store. Thread-safe via
// RWMutex; used by tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryStore creates a new in-memory content store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*Record),
	}
}

// Create inserts a new record with a generated UUID.
func (s *InMemoryStore) Create(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	record.ID = uuid.New().String()
	record.CreatedAt = now
	record.UpdatedAt = now

	recordCopy := *record
	s.records[record.ID] = &recordCopy

	return nil
}

// GetByID retrieves a record by its UUID, excluding soft-deleted records.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || r.DeletedAt != nil {
		return nil, ErrContentNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// ListVisitRecords returns the owner's non-deleted visit records for a shop.
func (s *InMemoryStore) ListVisitRecords(ctx context.Context, ownerID, shopID int64) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Record
	for _, r := range s.records {
		if !s.isLiveVisitRecord(r, ownerID, shopID) {
			continue
		}
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// SoftDeleteVisitRecords soft-deletes all of the owner's visit records
// for a shop.
func (s *InMemoryStore) SoftDeleteVisitRecords(ctx context.Context, ownerID, shopID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	affected := 0
	for _, r := range s.records {
		if !s.isLiveVisitRecord(r, ownerID, shopID) {
			continue
		}
		r.DeletedAt = &now
		r.UpdatedAt = now
		affected++
	}

	return affected, nil
}

// isLiveVisitRecord reports whether r is a non-deleted visit record for
// (owner, shop). Callers must hold the lock.
func (s *InMemoryStore) isLiveVisitRecord(r *Record, ownerID, shopID int64) bool {
	if r.DeletedAt != nil || r.Type != TypeVisitRecord {
		return false
	}
	if r.OwnerID != ownerID {
		return false
	}
	return r.ShopID != nil && *r.ShopID == shopID
}
