// Package idempotency stores responses for replay so that retried POST
// requests observe the same outcome as the original attempt.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// MaxKeyLength caps client-supplied idempotency keys. Matches the column
// width in the users_idempotency_keys migration.
const MaxKeyLength = 64

// Lifecycle states of a stored key.
//
// Only StatusCompleted is written today. StatusProcessing is reserved for
// marking a key while the first request is still in flight and appears in
// the schema CHECK constraint, so keep the two in sync with the migrations.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

var (
	// ErrKeyNotFound is returned by Repository.Get for an unknown key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned by Repository.Store on a duplicate key.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned for a key longer than MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// IdempotencyKey is a recorded response keyed by the client-supplied
// Idempotency-Key header, scoped to a method and route.
type IdempotencyKey struct {
	Key                string    `json:"key"`
	Method             string    `json:"method"`
	Route              string    `json:"route"`
	CreatedAt          time.Time `json:"created_at"`
	ResponseHash       string    `json:"response_hash"`
	Status             string    `json:"status"`
	ResponseBody       string    `json:"response_body"`
	ResponseStatusCode int       `json:"response_status_code"`
}

// ValidateKey rejects empty keys with ErrInvalidKey and keys longer than
// MaxKeyLength with ErrKeyTooLong.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash returns the hex SHA-256 digest of a response body,
// letting replays verify the stored body was not corrupted.
func ComputeResponseHash(responseBody string) string {
	sum := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(sum[:])
}

// Repository persists idempotency keys.
type Repository interface {
	// Get returns the record for key, or ErrKeyNotFound.
	Get(key string) (*IdempotencyKey, error)

	// Store saves a new record, or returns ErrKeyExists on a duplicate.
	Store(record *IdempotencyKey) error

	// DeleteOlderThan removes records older than duration and reports how
	// many were removed. Run periodically to bound storage growth.
	DeleteOlderThan(duration time.Duration) (int64, error)
}
