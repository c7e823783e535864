package ident

import (
	"testing"

	"github.com/google/uuid"
)

func TestNew_Unique(t *testing.T) {
	const draws = 10000

	seen := make(map[string]bool, draws)
	for i := range draws {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate identifier after %d draws: %s", i, id)
		}
		seen[id] = true
	}
}

func TestNew_ParsesAsUUID(t *testing.T) {
	id := New()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("New() = %q, not a valid UUID: %v", id, err)
	}
}

func TestNew_Consecutive(t *testing.T) {
	if a, b := New(), New(); a == b {
		t.Errorf("consecutive calls returned the same identifier: %s", a)
	}
}

func TestPseudoRandomID_Shape(t *testing.T) {
	for range 100 {
		id := pseudoRandomID()

		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("pseudoRandomID() = %q, not UUID-shaped: %v", id, err)
		}
		if got := parsed.Version(); got != 4 {
			t.Errorf("pseudoRandomID() version = %d, want 4", got)
		}
		if got := parsed.Variant(); got != uuid.RFC4122 {
			t.Errorf("pseudoRandomID() variant = %v, want RFC4122", got)
		}
	}
}

func TestPseudoRandomID_Unique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for range 1000 {
		id := pseudoRandomID()
		if seen[id] {
			t.Fatalf("pseudoRandomID() produced a duplicate: %s", id)
		}
		seen[id] = true
	}
}
