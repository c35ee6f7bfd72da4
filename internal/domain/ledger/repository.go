package ledger

import (
	"context"

	"lotledger/internal/domain"
)

// Repository stores movements. There is deliberately no update or delete.
type Repository interface {
	// Append inserts one movement.
	Append(ctx context.Context, m *Movement) error

	// AppendBatch inserts movements in one round trip.
	AppendBatch(ctx context.Context, ms []*Movement) error

	// Query returns movements matching filter, ordered by occurrence time
	// descending (creation time when absent), then id descending.
	Query(ctx context.Context, filter Filter) (domain.ListResult[*Movement], error)

	// Totals sums quantities per type over movements matching filter.
	Totals(ctx context.Context, filter Filter) (Totals, error)
}
