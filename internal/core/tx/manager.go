// Package tx provides the unit-of-work abstraction.
// Domain services depend on Manager; Postgres and in-memory storage implement it.
package tx

import (
	"context"
)

// Manager runs a unit of work.
//
// The active transaction travels in the returned context, so repositories
// called with that context join it. Any error returned by fn (or a panic)
// rolls back every write made inside fn.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
