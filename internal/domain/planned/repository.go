package planned

import (
	"context"
	"time"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
)

// Repository persists planned transactions.
type Repository interface {
	// Create inserts a record.
	Create(ctx context.Context, p *PlannedTransaction) error

	// GetByID returns a record or apperror NOT_FOUND, locking the row when
	// lock is domain.LockForUpdate.
	GetByID(ctx context.Context, plannedID id.ID, lock domain.LockMode) (*PlannedTransaction, error)

	// Update writes every mutable field of a record.
	Update(ctx context.Context, p *PlannedTransaction) error

	// Delete removes a record. Children keep existing with their parent link cleared.
	Delete(ctx context.Context, plannedID id.ID) error

	// List returns records matching filter, newest scheduled date first.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*PlannedTransaction], error)

	// LastSliceSeq returns the highest slice sequence issued under
	// parentNumber, 0 when none. Deleted slices never lower it below a
	// surviving one.
	LastSliceSeq(ctx context.Context, parentNumber string) (int, error)

	// ReserveCompletion atomically subtracts amount from the remaining
	// quantity. The update only applies while quantity >= amount and the
	// record is PENDING or APPROVED; the new status is COMPLETED when nothing
	// remains, PENDING otherwise. Returns apperror CONCURRENT_MODIFICATION
	// when no row matched.
	ReserveCompletion(ctx context.Context, plannedID id.ID, amount types.Quantity, completedBy string, at time.Time) (*PlannedTransaction, error)

	// ReleaseCompletion reverses ReserveCompletion: adds amount back and
	// restores status, completion and update stamps from prior.
	ReleaseCompletion(ctx context.Context, prior *PlannedTransaction, amount types.Quantity) error
}

// Auditor records workflow transitions.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditEntry is one recorded transition.
type AuditEntry struct {
	PlannedID id.ID
	Action    Action
	ActorID   string
	ActorName string
	Before    *PlannedTransaction
	After     *PlannedTransaction
	Details   map[string]any
}

// NopAuditor discards entries.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, AuditEntry) error { return nil }
