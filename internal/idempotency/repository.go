// Package idempotency provides repository implementations for idempotency key storage.
package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository keeps recorded responses in a map. Records do not
// survive a restart; a retried request after a restart is simply served
// fresh, which is safe because the ranking operations it guards are
// themselves duplicate-checked.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*IdempotencyKey
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		keys: make(map[string]*IdempotencyKey),
	}
}

// Get returns the record for key, or ErrKeyNotFound. The returned
// record is a copy.
func (r *InMemoryRepository) Get(key string) (*IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return record.clone(), nil
}

// Store saves a new record, validating the key first. A zero CreatedAt
// is backfilled with now. Returns ErrKeyExists on duplicates.
func (r *InMemoryRepository) Store(record *IdempotencyKey) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[record.Key]; exists {
		return ErrKeyExists
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	// Store a copy so later caller mutations cannot reach the map.
	r.keys[record.Key] = record.clone()
	return nil
}

// DeleteOlderThan removes records created before now minus duration and
// returns how many were removed.
func (r *InMemoryRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-duration)
	var deleted int64
	for key, record := range r.keys {
		if record.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}

func (k *IdempotencyKey) clone() *IdempotencyKey {
	if k == nil {
		return nil
	}
	copied := *k
	return &copied
}
