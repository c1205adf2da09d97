package idempotency

import (
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		expectErr error
	}{
		{"empty key", "", ErrInvalidKey},
		{"simple key", "retry-token-123", nil},
		{"uuid key", "550e8400-e29b-41d4-a716-446655440000", nil},
		{"key at max length", strings.Repeat("a", MaxKeyLength), nil},
		{"key exceeds max length", strings.Repeat("a", MaxKeyLength+1), ErrKeyTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.expectErr {
				t.Errorf("ValidateKey() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

func TestComputeResponseHash(t *testing.T) {
	// SHA-256 of the empty string is a known constant.
	const emptyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ComputeResponseHash(""); got != emptyHash {
		t.Errorf("ComputeResponseHash(\"\") = %s, want %s", got, emptyHash)
	}

	body := `{"entry":{"shop_id":42,"rank":1}}`
	hash := ComputeResponseHash(body)
	if len(hash) != 64 {
		t.Errorf("ComputeResponseHash() hash length = %d, want 64", len(hash))
	}
	if ComputeResponseHash(body) != hash {
		t.Error("ComputeResponseHash() is not deterministic")
	}

	other := ComputeResponseHash(`{"entry":{"shop_id":42,"rank":2}}`)
	if other == hash {
		t.Error("different responses should produce different hashes")
	}
}
