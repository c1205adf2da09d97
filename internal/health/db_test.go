package health

import (
	"database/sql"
	"testing"
)

func TestNewDBChecker(t *testing.T) {
	db := &sql.DB{}

	checker := NewDBChecker(db)
	if checker == nil {
		t.Fatal("expected checker to be non-nil")
	}
	if checker.db != db {
		t.Error("expected checker to hold the provided pool")
	}
}
