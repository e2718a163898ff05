// Package uuid includes tests for the run ID helpers.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and version 7.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if id1 > id2 {
		t.Fatalf("expected time ordered IDs, got %s then %s", id1, id2)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	id, err := Parse("0192F3A4-7B3C-7D8E-9F00-112233445566")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got, _ := id.NewID()
	if got != "0192f3a4-7b3c-7d8e-9f00-112233445566" {
		t.Fatalf("expected canonical lower-case id, got %s", got)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}
