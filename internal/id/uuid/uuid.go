// Package uuid generates and validates run IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 run IDs, so listing the run prefix
// in a bucket returns runs in start order.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// Static always returns the same caller-supplied run ID.
type Static string

// NewID returns the fixed ID.
func (s Static) NewID() (string, error) {
	return string(s), nil
}

// Parse validates a caller-supplied run ID and returns it in canonical form.
func Parse(raw string) (Static, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid run id %q: %w", raw, err)
	}
	return Static(id.String()), nil
}
