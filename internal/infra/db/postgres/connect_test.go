package postgres

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"})) {
		t.Fatal("23505 should be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) || isUniqueViolation(nil) {
		t.Fatal("false positive")
	}
}
