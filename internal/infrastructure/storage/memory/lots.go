package memory

import (
	"context"
	"sort"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/lot"
)

// LotRepo implements lot.Repository.
type LotRepo struct {
	store *Store
}

var _ lot.Repository = (*LotRepo)(nil)

// NewLotRepo creates a lot repository.
func NewLotRepo(store *Store) *LotRepo {
	return &LotRepo{store: store}
}

func (r *LotRepo) Insert(ctx context.Context, l *lot.Lot) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.lots[l.ID]; exists {
			return apperror.NewDuplicate("lot", "id", l.ID.String())
		}
		if l.Identity != nil {
			for _, other := range st.lots {
				if other.Identity != nil && *other.Identity == *l.Identity {
					return apperror.NewDuplicate("lot", "identity", *l.Identity)
				}
			}
		}
		st.lots[l.ID] = l.Clone()
		return nil
	})
}

func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID, _ domain.LockMode) (*lot.Lot, error) {
	var out *lot.Lot
	err := r.store.read(ctx, func(st *state) error {
		l, ok := st.lots[lotID]
		if !ok {
			return apperror.NewNotFound("lot", lotID)
		}
		out = l.Clone()
		return nil
	})
	return out, err
}

func (r *LotRepo) GetByIdentity(ctx context.Context, identity string) (*lot.Lot, error) {
	var out *lot.Lot
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lots {
			if l.Identity != nil && *l.Identity == identity {
				out = l.Clone()
				return nil
			}
		}
		return apperror.NewNotFound("lot", identity)
	})
	return out, err
}

func (r *LotRepo) FindConsumable(ctx context.Context, itemID, locationID id.ID, _ domain.LockMode) ([]*lot.Lot, error) {
	var out []*lot.Lot
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lots {
			if l.ItemID == itemID && l.LocationID == locationID && l.IsConsumable() {
				out = append(out, l.Clone())
			}
		}
		return nil
	})
	sortFIFO(out)
	return out, err
}

// sortFIFO orders by expiration, then receipt time, then id.
func sortFIFO(lots []*lot.Lot) {
	sort.Slice(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.ExpirationDate.Equal(b.ExpirationDate) {
			return a.ExpirationDate.Before(b.ExpirationDate)
		}
		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		return id.Compare(a.ID, b.ID) < 0
	})
}

func (r *LotRepo) SetRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity, status lot.Status, at time.Time) error {
	return r.store.write(ctx, func(st *state) error {
		l, ok := st.lots[lotID]
		if !ok {
			return apperror.NewNotFound("lot", lotID)
		}
		l.RemainingQuantity = remaining
		l.Status = status
		l.UpdatedAt = at
		return nil
	})
}

func (r *LotRepo) List(ctx context.Context, filter lot.ListFilter) (domain.ListResult[*lot.Lot], error) {
	var matched []*lot.Lot
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lots {
			if filter.ItemID != nil && l.ItemID != *filter.ItemID {
				continue
			}
			if filter.LocationID != nil && l.LocationID != *filter.LocationID {
				continue
			}
			if filter.Status != nil && l.Status != *filter.Status {
				continue
			}
			if !filter.IncludeEmpty && !l.IsConsumable() {
				continue
			}
			matched = append(matched, l.Clone())
		}
		return nil
	})
	if err != nil {
		return domain.ListResult[*lot.Lot]{}, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
		}
		return id.Compare(matched[i].ID, matched[j].ID) > 0
	})

	page := filter.Page.Normalize()
	return domain.NewListResult(paginate(matched, page), int64(len(matched)), page), nil
}

func (r *LotRepo) SumConsumable(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error) {
	total := types.Zero()
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lots {
			if l.ItemID == itemID && l.LocationID == locationID && l.IsConsumable() {
				total = total.Add(l.RemainingQuantity)
			}
		}
		return nil
	})
	return total, err
}

func (r *LotRepo) RefreshStatuses(ctx context.Context, now time.Time, window time.Duration) (int64, error) {
	var changed int64
	err := r.store.write(ctx, func(st *state) error {
		for _, l := range st.lots {
			if !l.IsConsumable() {
				continue
			}
			status := lot.StatusAt(l.ExpirationDate, now, window)
			if status != l.Status {
				l.Status = status
				l.UpdatedAt = now
				changed++
			}
		}
		return nil
	})
	return changed, err
}

// paginate slices items to a normalized page.
func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
