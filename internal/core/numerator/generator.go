// Package numerator provides contracts for human-readable auto-numbering
// of planned transactions. Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential numbers.
//
// Numbers are taken outside of business transactions: a rolled back
// transaction leaves a gap rather than holding the sequence row locked.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., PR-2026-00001)
	//
	// Supports Strict (DB-level) and Cached (Memory-level) strategies.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current sequence value (for migration purposes).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
