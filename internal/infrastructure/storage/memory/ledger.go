package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain"
	"lotledger/internal/domain/ledger"
)

// MovementRepo implements ledger.Repository.
type MovementRepo struct {
	store *Store
}

var _ ledger.Repository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement repository.
func NewMovementRepo(store *Store) *MovementRepo {
	return &MovementRepo{store: store}
}

func (r *MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.AppendBatch(ctx, []*ledger.Movement{m})
}

func (r *MovementRepo) AppendBatch(ctx context.Context, ms []*ledger.Movement) error {
	return r.store.write(ctx, func(st *state) error {
		for _, m := range ms {
			for _, existing := range st.movements {
				if existing.ID == m.ID {
					return apperror.NewDuplicate("movement", "id", m.ID.String())
				}
			}
			c := *m
			st.movements = append(st.movements, &c)
		}
		return nil
	})
}

func (r *MovementRepo) Query(ctx context.Context, filter ledger.Filter) (domain.ListResult[*ledger.Movement], error) {
	matched, err := r.match(ctx, filter)
	if err != nil {
		return domain.ListResult[*ledger.Movement]{}, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := occurred(matched[i]), occurred(matched[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return id.Compare(matched[i].ID, matched[j].ID) > 0
	})

	page := filter.Page.Normalize()
	return domain.NewListResult(paginate(matched, page), int64(len(matched)), page), nil
}

func (r *MovementRepo) Totals(ctx context.Context, filter ledger.Filter) (ledger.Totals, error) {
	matched, err := r.match(ctx, filter)
	if err != nil {
		return nil, err
	}

	totals := make(ledger.Totals)
	for _, m := range matched {
		totals[m.Type] = totals.Get(m.Type).Add(m.Quantity)
	}
	return totals, nil
}

func (r *MovementRepo) match(ctx context.Context, f ledger.Filter) ([]*ledger.Movement, error) {
	var out []*ledger.Movement
	err := r.store.read(ctx, func(st *state) error {
		for _, m := range st.movements {
			if matchesMovement(m, f) {
				c := *m
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func matchesMovement(m *ledger.Movement, f ledger.Filter) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, m.Type) {
		return false
	}
	if f.ItemID != nil && m.ItemID != *f.ItemID {
		return false
	}
	if f.LocationID != nil && !sameID(m.FromLocationID, *f.LocationID) && !sameID(m.ToLocationID, *f.LocationID) {
		return false
	}
	if f.ActorID != nil && m.ActorID != *f.ActorID {
		return false
	}
	if f.LotIdentity != nil && m.LotIdentity != *f.LotIdentity {
		return false
	}
	if f.CorrelationID != nil && !sameID(m.CorrelationID, *f.CorrelationID) {
		return false
	}
	at := occurred(m)
	if f.From != nil && at.Before(*f.From) {
		return false
	}
	if f.To != nil && !at.Before(*f.To) {
		return false
	}
	return true
}

func sameID(p *id.ID, v id.ID) bool {
	return p != nil && *p == v
}

// occurred falls back to creation time for rows without an occurrence time.
func occurred(m *ledger.Movement) time.Time {
	if m.OccurredAt.IsZero() {
		return m.CreatedAt
	}
	return m.OccurredAt
}
