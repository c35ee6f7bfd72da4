package lot

import (
	"context"
	"time"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
)

// Repository persists lots. Mutating calls and locking reads must run inside
// a transaction started by tx.Manager.
type Repository interface {
	// Insert persists a new lot. Returns apperror DUPLICATE_ENTRY when the
	// identity is taken; the surrounding transaction stays usable.
	Insert(ctx context.Context, lot *Lot) error

	// GetByID returns the lot, locking it when lock is domain.LockForUpdate.
	GetByID(ctx context.Context, lotID id.ID, lock domain.LockMode) (*Lot, error)

	// GetByIdentity returns the lot carrying the barcode.
	GetByIdentity(ctx context.Context, identity string) (*Lot, error)

	// FindConsumable returns lots of the item at the location with remaining
	// stock, ordered by expiration date, then receipt time, then id.
	FindConsumable(ctx context.Context, itemID, locationID id.ID, lock domain.LockMode) ([]*Lot, error)

	// SetRemaining writes the remaining quantity and status of a lot.
	SetRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity, status Status, at time.Time) error

	// List returns lots matching the filter, newest receipt first.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error)

	// SumConsumable sums remaining stock of the item at the location.
	SumConsumable(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error)

	// RefreshStatuses recomputes status for lots with remaining stock.
	// Returns the number of lots whose status changed.
	RefreshStatuses(ctx context.Context, now time.Time, window time.Duration) (int64, error)
}

// ListFilter selects lots.
type ListFilter struct {
	ItemID     *id.ID
	LocationID *id.ID
	Status     *Status

	// IncludeEmpty includes fully consumed lots.
	IncludeEmpty bool

	domain.Page
}
