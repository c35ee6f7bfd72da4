package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/infrastructure/storage/memory"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newService() *ledger.Service {
	store := memory.NewStore()
	cat := memory.NewCatalog(store)
	cat.PutActor("u-7", "Sam Keeper")
	svc := ledger.NewService(memory.NewMovementRepo(store), cat).
		WithClock(func() time.Time { return t0 })
	return svc
}

func receive(item, to id.ID, qty int64, at time.Time) *ledger.Movement {
	return &ledger.Movement{
		Type:         ledger.TypeReceive,
		ItemID:       item,
		LotID:        id.New(),
		LotIdentity:  "17000000000008",
		Quantity:     types.NewQuantity(qty),
		Unit:         "kg",
		ToLocationID: &to,
		OccurredAt:   at,
	}
}

func TestRecord_FillsAttribution(t *testing.T) {
	svc := newService()
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "u-7"})

	m, err := svc.Record(ctx, receive(id.New(), id.New(), 5, time.Time{}))
	require.NoError(t, err)

	assert.False(t, id.IsNil(m.ID))
	assert.Equal(t, "u-7", m.ActorID)
	assert.Equal(t, "Sam Keeper", m.ActorName)
	assert.True(t, m.OccurredAt.Equal(t0))
	assert.True(t, m.CreatedAt.Equal(t0))
}

func TestRecord_ValidatesShape(t *testing.T) {
	svc := newService()
	loc := id.New()

	tests := []struct {
		name string
		m    *ledger.Movement
	}{
		{"issue without source", &ledger.Movement{Type: ledger.TypeIssue, ItemID: id.New(), LotID: id.New(), Quantity: types.NewQuantity(1)}},
		{"receive without destination", &ledger.Movement{Type: ledger.TypeReceive, ItemID: id.New(), LotID: id.New(), Quantity: types.NewQuantity(1)}},
		{"transfer missing side", &ledger.Movement{Type: ledger.TypeTransferIn, ItemID: id.New(), LotID: id.New(), Quantity: types.NewQuantity(1), ToLocationID: &loc}},
		{"zero quantity", &ledger.Movement{Type: ledger.TypeReceive, ItemID: id.New(), LotID: id.New(), Quantity: types.Zero(), ToLocationID: &loc}},
		{"unknown type", &ledger.Movement{Type: "ADJUST", ItemID: id.New(), LotID: id.New(), Quantity: types.NewQuantity(1), ToLocationID: &loc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tt.m)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestRecordBatch_ReportsIndex(t *testing.T) {
	svc := newService()
	item, loc := id.New(), id.New()

	err := svc.RecordBatch(context.Background(), []*ledger.Movement{
		receive(item, loc, 1, t0),
		{Type: ledger.TypeIssue, ItemID: item, LotID: id.New(), Quantity: types.NewQuantity(1)},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 1, appErr.Details["index"])

	res, err := svc.Query(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items, "a rejected batch appends nothing")
}

func TestQuery_OrderAndFilters(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	item, other := id.New(), id.New()
	wh, shop := id.New(), id.New()

	first := receive(item, wh, 10, t0.Add(-3*time.Hour))
	second := receive(item, wh, 20, t0.Add(-2*time.Hour))
	third := receive(other, shop, 30, t0.Add(-time.Hour))
	move := &ledger.Movement{
		Type:           ledger.TypeTransferOut,
		ItemID:         item,
		LotID:          first.LotID,
		Quantity:       types.NewQuantity(4),
		Unit:           "kg",
		FromLocationID: &wh,
		ToLocationID:   &shop,
		OccurredAt:     t0.Add(-time.Hour),
	}
	require.NoError(t, svc.RecordBatch(ctx, []*ledger.Movement{first, second, third, move}))

	all, err := svc.Query(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all.Items, 4)
	assert.EqualValues(t, 4, all.TotalCount)
	// Newest first; third and move tie on time and fall back to id descending.
	assert.Equal(t, move.ID, all.Items[0].ID)
	assert.Equal(t, third.ID, all.Items[1].ID)
	assert.Equal(t, second.ID, all.Items[2].ID)
	assert.Equal(t, first.ID, all.Items[3].ID)

	atShop, err := svc.Query(ctx, ledger.Filter{LocationID: &shop})
	require.NoError(t, err)
	assert.Len(t, atShop.Items, 2, "location matches either side")

	from, to := t0.Add(-2*time.Hour), t0.Add(-time.Hour)
	window, err := svc.Query(ctx, ledger.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window.Items, 1)
	assert.Equal(t, second.ID, window.Items[0].ID)

	paged, err := svc.Query(ctx, ledger.Filter{Page: domain.Page{Limit: 2, Offset: 2}})
	require.NoError(t, err)
	require.Len(t, paged.Items, 2)
	assert.EqualValues(t, 4, paged.TotalCount)
	assert.Equal(t, second.ID, paged.Items[0].ID)
}

func TestQuery_RejectsBadFilters(t *testing.T) {
	svc := newService()

	_, err := svc.Query(context.Background(), ledger.Filter{Types: []ledger.MovementType{"LOSS"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	from, to := t0, t0
	_, err = svc.Query(context.Background(), ledger.Filter{From: &from, To: &to})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestTotals(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	item, wh := id.New(), id.New()

	require.NoError(t, svc.RecordBatch(ctx, []*ledger.Movement{
		receive(item, wh, 10, t0),
		receive(item, wh, 5, t0),
		{Type: ledger.TypeIssue, ItemID: item, LotID: id.New(), Quantity: types.NewQuantity(3), FromLocationID: &wh},
	}))

	totals, err := svc.Totals(ctx, ledger.Filter{ItemID: &item})
	require.NoError(t, err)
	assert.True(t, totals.Get(ledger.TypeReceive).Equal(types.NewQuantity(15)))
	assert.True(t, totals.Outflow().Equal(types.NewQuantity(3)))
	assert.True(t, totals.Get(ledger.TypeTransferIn).IsZero())
}
