package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/planned"
)

// PlannedRepo implements planned.Repository.
type PlannedRepo struct {
	store *Store
}

var _ planned.Repository = (*PlannedRepo)(nil)

// NewPlannedRepo creates a planned-transaction repository.
func NewPlannedRepo(store *Store) *PlannedRepo {
	return &PlannedRepo{store: store}
}

func (r *PlannedRepo) Create(ctx context.Context, p *planned.PlannedTransaction) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.planned[p.ID]; exists {
			return apperror.NewDuplicate("planned transaction", "id", p.ID.String())
		}
		for _, other := range st.planned {
			if p.Number != "" && other.Number == p.Number {
				return apperror.NewDuplicate("planned transaction", "number", p.Number)
			}
		}
		st.planned[p.ID] = p.Clone()
		return nil
	})
}

func (r *PlannedRepo) GetByID(ctx context.Context, plannedID id.ID, _ domain.LockMode) (*planned.PlannedTransaction, error) {
	var out *planned.PlannedTransaction
	err := r.store.read(ctx, func(st *state) error {
		p, ok := st.planned[plannedID]
		if !ok {
			return apperror.NewNotFound("planned transaction", plannedID)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r *PlannedRepo) Update(ctx context.Context, p *planned.PlannedTransaction) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.planned[p.ID]; !ok {
			return apperror.NewNotFound("planned transaction", p.ID)
		}
		st.planned[p.ID] = p.Clone()
		return nil
	})
}

func (r *PlannedRepo) Delete(ctx context.Context, plannedID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.planned[plannedID]; !ok {
			return apperror.NewNotFound("planned transaction", plannedID)
		}
		delete(st.planned, plannedID)
		for _, p := range st.planned {
			if p.ParentPlannedID != nil && *p.ParentPlannedID == plannedID {
				p.ParentPlannedID = nil
			}
		}
		return nil
	})
}

func (r *PlannedRepo) List(ctx context.Context, f planned.ListFilter) (domain.ListResult[*planned.PlannedTransaction], error) {
	var matched []*planned.PlannedTransaction
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.planned {
			if matchesPlanned(p, f) {
				matched = append(matched, p.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return domain.ListResult[*planned.PlannedTransaction]{}, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledDate.Equal(matched[j].ScheduledDate) {
			return matched[i].ScheduledDate.After(matched[j].ScheduledDate)
		}
		return id.Compare(matched[i].ID, matched[j].ID) > 0
	})

	page := f.Page.Normalize()
	return domain.NewListResult(paginate(matched, page), int64(len(matched)), page), nil
}

func matchesPlanned(p *planned.PlannedTransaction, f planned.ListFilter) bool {
	if f.Type != nil && p.TransactionType != *f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status) {
		return false
	}
	if f.ItemID != nil && p.ItemID != *f.ItemID {
		return false
	}
	if f.LocationID != nil && p.LocationID != *f.LocationID {
		return false
	}
	if f.ParentPlannedID != nil && !sameID(p.ParentPlannedID, *f.ParentPlannedID) {
		return false
	}
	if f.OnlyRoots && p.ParentPlannedID != nil {
		return false
	}
	if f.ScheduledFrom != nil && p.ScheduledDate.Before(*f.ScheduledFrom) {
		return false
	}
	if f.ScheduledTo != nil && !p.ScheduledDate.Before(*f.ScheduledTo) {
		return false
	}
	return true
}

func (r *PlannedRepo) LastSliceSeq(ctx context.Context, parentNumber string) (int, error) {
	last := 0
	err := r.store.read(ctx, func(st *state) error {
		for _, p := range st.planned {
			if seq, ok := planned.SliceSeq(parentNumber, p.Number); ok && seq > last {
				last = seq
			}
		}
		return nil
	})
	return last, err
}

func (r *PlannedRepo) ReserveCompletion(
	ctx context.Context,
	plannedID id.ID,
	amount types.Quantity,
	completedBy string,
	at time.Time,
) (*planned.PlannedTransaction, error) {
	var out *planned.PlannedTransaction
	err := r.store.write(ctx, func(st *state) error {
		p, ok := st.planned[plannedID]
		if !ok || p.Quantity.LessThan(amount) ||
			(p.Status != planned.StatusPending && p.Status != planned.StatusApproved) {
			return apperror.NewConcurrentModification("planned transaction", plannedID)
		}

		p.Quantity = p.Quantity.Sub(amount)
		if p.Quantity.IsPositive() {
			p.Status = planned.StatusPending
		} else {
			p.Status = planned.StatusCompleted
			by := completedBy
			p.CompletedBy = &by
			stamp := at
			p.CompletedAt = &stamp
		}
		p.UpdatedAt = at

		out = p.Clone()
		return nil
	})
	return out, err
}

func (r *PlannedRepo) ReleaseCompletion(ctx context.Context, prior *planned.PlannedTransaction, amount types.Quantity) error {
	return r.store.write(ctx, func(st *state) error {
		p, ok := st.planned[prior.ID]
		if !ok {
			return apperror.NewNotFound("planned transaction", prior.ID)
		}

		restored := prior.Clone()
		p.Quantity = p.Quantity.Add(amount)
		p.Status = restored.Status
		p.CompletedBy = restored.CompletedBy
		p.CompletedAt = restored.CompletedAt
		p.UpdatedAt = restored.UpdatedAt
		return nil
	})
}
