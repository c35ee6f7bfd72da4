package planned_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/planned"
	"lotledger/internal/testutil"
)

func createPlanned(t *testing.T, f *testutil.Fixture, typ planned.Type, item *catalog.Item, loc *catalog.Location, qty int64) *planned.PlannedTransaction {
	t.Helper()
	p, err := f.Planned.Create(f.Ctx(), planned.CreateRequest{
		Type:          typ,
		ItemID:        item.ID,
		LocationID:    loc.ID,
		Quantity:      types.NewQuantity(qty),
		ScheduledDate: testutil.Epoch.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return p
}

func TestCreate(t *testing.T) {
	f := testutil.NewFixture(t)
	supplier := "Dairy Co"

	p, err := f.Planned.Create(f.Ctx(), planned.CreateRequest{
		Type:          planned.TypeReceive,
		ItemID:        f.Milk.ID,
		LocationID:    f.Warehouse.ID,
		Quantity:      types.NewQuantity(500),
		ScheduledDate: testutil.Epoch.Add(7 * 24 * time.Hour),
		Meta:          planned.Meta{SupplierName: &supplier},
	})
	require.NoError(t, err)

	assert.Equal(t, "PR-2026-00001", p.Number)
	assert.Equal(t, planned.StatusPending, p.Status)
	assert.Equal(t, testutil.ActorID, p.RequestedBy)
	assert.Equal(t, "l", p.Unit)
	assert.True(t, p.PlannedQuantity.Equal(types.NewQuantity(500)))
	assert.Equal(t, &supplier, p.SupplierName)

	issue := createPlanned(t, f, planned.TypeIssue, f.Milk, f.Warehouse, 5)
	assert.Equal(t, "PI-2026-00001", issue.Number)
	second := createPlanned(t, f, planned.TypeReceive, f.Milk, f.Warehouse, 5)
	assert.Equal(t, "PR-2026-00002", second.Number)

	assert.Equal(t, []planned.Action{planned.ActionCreate, planned.ActionCreate, planned.ActionCreate}, f.Audit.Actions())
}

func TestCreate_Rejections(t *testing.T) {
	f := testutil.NewFixture(t)
	sched := testutil.Epoch

	tests := []struct {
		name string
		req  planned.CreateRequest
		code string
	}{
		{"bad type", planned.CreateRequest{Type: "MOVE", ItemID: f.Milk.ID, LocationID: f.Shop.ID, Quantity: types.NewQuantity(1), ScheduledDate: sched}, apperror.CodeValidation},
		{"zero quantity", planned.CreateRequest{Type: planned.TypeIssue, ItemID: f.Milk.ID, LocationID: f.Shop.ID, Quantity: types.Zero(), ScheduledDate: sched}, apperror.CodeValidation},
		{"no date", planned.CreateRequest{Type: planned.TypeIssue, ItemID: f.Milk.ID, LocationID: f.Shop.ID, Quantity: types.NewQuantity(1)}, apperror.CodeValidation},
		{"wrong unit", planned.CreateRequest{Type: planned.TypeIssue, ItemID: f.Milk.ID, LocationID: f.Shop.ID, Quantity: types.NewQuantity(1), Unit: "kg", ScheduledDate: sched}, apperror.CodeValidation},
		{"unknown item", planned.CreateRequest{Type: planned.TypeIssue, ItemID: id.New(), LocationID: f.Shop.ID, Quantity: types.NewQuantity(1), ScheduledDate: sched}, apperror.CodeNotFound},
		{"unknown location", planned.CreateRequest{Type: planned.TypeIssue, ItemID: f.Milk.ID, LocationID: id.New(), Quantity: types.NewQuantity(1), ScheduledDate: sched}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Planned.Create(f.Ctx(), tt.req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestStateMachine(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	comment := "ok for tuesday"

	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	approved, err := f.Planned.Approve(ctx, p.ID, "manager-1", &comment)
	require.NoError(t, err)
	assert.Equal(t, planned.StatusApproved, approved.Status)
	assert.Equal(t, "manager-1", *approved.ApprovedBy)
	assert.True(t, approved.ApprovedAt.Equal(testutil.Epoch))
	assert.Equal(t, comment, *approved.ApprovalComment)

	_, err = f.Planned.Approve(ctx, p.ID, "manager-1", nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	qty := types.NewQuantity(5)
	_, err = f.Planned.Update(ctx, p.ID, planned.UpdateRequest{Quantity: &qty})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "only PENDING is editable")

	err = f.Planned.Delete(ctx, p.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "approved intents cannot be deleted")

	_, err = f.Planned.Reject(ctx, p.ID, "  ")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	rejected, err := f.Planned.Reject(ctx, p.ID, "supplier cancelled")
	require.NoError(t, err)
	assert.Equal(t, planned.StatusCancelled, rejected.Status)
	assert.Equal(t, "supplier cancelled", *rejected.RejectionReason)

	_, err = f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
	_, err = f.Planned.Reject(ctx, p.ID, "again")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	require.NoError(t, f.Planned.Delete(ctx, p.ID), "cancelled intents can be deleted")
	_, err = f.Planned.Get(ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, []planned.Action{
		planned.ActionCreate, planned.ActionApprove, planned.ActionReject, planned.ActionDelete,
	}, f.Audit.Actions())
}

func TestUpdate_KeepsFulfilledSlicesInPlannedTotal(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	_, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(40)})
	require.NoError(t, err)

	qty := types.NewQuantity(80)
	notes := "more flour"
	updated, err := f.Planned.Update(ctx, p.ID, planned.UpdateRequest{Quantity: &qty, Meta: planned.Meta{Notes: &notes}})
	require.NoError(t, err)
	assert.True(t, updated.Quantity.Equal(types.NewQuantity(80)))
	assert.True(t, updated.PlannedQuantity.Equal(types.NewQuantity(120)))
	assert.Equal(t, notes, *updated.Notes)
}

func TestComplete_Full(t *testing.T) {
	f := testutil.NewFixture(t)
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	res, err := f.Planned.Complete(f.Ctx(), p.ID, planned.CompleteRequest{
		ActualQuantity: types.NewQuantity(100),
		PrintLabel:     true,
	})
	require.NoError(t, err)

	assert.Nil(t, res.CompletedPartial)
	assert.Equal(t, planned.StatusCompleted, res.Planned.Status)
	assert.True(t, res.Planned.Quantity.IsZero())
	assert.Equal(t, testutil.ActorID, *res.Planned.CompletedBy)
	require.NotNil(t, res.Lot)
	assert.True(t, res.Lot.RemainingQuantity.Equal(types.NewQuantity(100)))
	assert.Len(t, f.Labels.Requests(), 1)

	ms, err := f.Ledger.Query(context.Background(), ledger.Filter{CorrelationID: &p.ID})
	require.NoError(t, err)
	require.Len(t, ms.Items, 1)
	assert.Equal(t, ledger.TypeReceive, ms.Items[0].Type)
	assert.Equal(t, "planned "+p.Number, *ms.Items[0].Note)

	_, err = f.Planned.Complete(f.Ctx(), p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestComplete_PartialFortyThenSixty(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	first, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(40)})
	require.NoError(t, err)
	assert.Equal(t, planned.StatusPending, first.Planned.Status)
	assert.True(t, first.Planned.Quantity.Equal(types.NewQuantity(60)))
	require.NotNil(t, first.CompletedPartial)
	assert.Equal(t, p.Number+"/1", first.CompletedPartial.Number)
	assert.Equal(t, planned.StatusCompleted, first.CompletedPartial.Status)
	assert.True(t, first.CompletedPartial.Quantity.Equal(types.NewQuantity(40)))
	assert.Equal(t, p.ID, *first.CompletedPartial.ParentPlannedID)

	_, err = f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(61)})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "cannot complete more than remains")

	second, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(60)})
	require.NoError(t, err)
	assert.Equal(t, planned.StatusCompleted, second.Planned.Status)
	assert.True(t, second.Planned.Quantity.IsZero())
	require.NotNil(t, second.CompletedPartial)
	assert.Equal(t, p.Number+"/2", second.CompletedPartial.Number)

	parent, err := f.Planned.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, planned.StatusCompleted, parent.Status)

	children, err := f.Planned.List(ctx, planned.ListFilter{ParentPlannedID: &p.ID})
	require.NoError(t, err)
	require.Len(t, children.Items, 2)
	total := types.Zero()
	for _, c := range children.Items {
		assert.Equal(t, planned.StatusCompleted, c.Status)
		total = total.Add(c.Quantity)
	}
	assert.True(t, total.Equal(types.NewQuantity(100)))

	lots, err := f.Lots.List(ctx, lot.ListFilter{ItemID: &f.Flour.ID, IncludeEmpty: true})
	require.NoError(t, err)
	assert.Len(t, lots.Items, 2, "exactly two lots")

	roots, err := f.Planned.List(ctx, planned.ListFilter{OnlyRoots: true})
	require.NoError(t, err)
	assert.Len(t, roots.Items, 1)

	for _, c := range []*planned.PlannedTransaction{first.CompletedPartial, second.CompletedPartial} {
		ms, err := f.Ledger.Query(ctx, ledger.Filter{CorrelationID: &c.ID})
		require.NoError(t, err)
		require.Len(t, ms.Items, 1)
		assert.True(t, ms.Items[0].Quantity.Equal(c.Quantity))
	}
}

func TestComplete_IssueAllocatesFIFO(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	a := f.Receive(t, f.Milk, f.Shop, "30", 3*testutil.Day)
	b := f.Receive(t, f.Milk, f.Shop, "50", 8*testutil.Day)

	p := createPlanned(t, f, planned.TypeIssue, f.Milk, f.Shop, 40)
	_, err := f.Planned.Approve(ctx, p.ID, "", nil)
	require.NoError(t, err)

	res, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(40)})
	require.NoError(t, err)
	require.NotNil(t, res.Allocation)
	require.Len(t, res.Allocation.Traces, 2)
	assert.Equal(t, a.ID, res.Allocation.Traces[0].LotID)
	assert.True(t, f.Remaining(t, a.ID).IsZero())
	assert.True(t, f.Remaining(t, b.ID).Equal(types.NewQuantity(40)))

	ms, err := f.Ledger.Query(ctx, ledger.Filter{CorrelationID: &p.ID, Types: []ledger.MovementType{ledger.TypeIssue}})
	require.NoError(t, err)
	assert.Len(t, ms.Items, 2)
}

func TestComplete_CompensatesFailedIssue(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	stock := f.Receive(t, f.Milk, f.Shop, "20", 5*testutil.Day)

	p := createPlanned(t, f, planned.TypeIssue, f.Milk, f.Shop, 50)
	_, err := f.Planned.Approve(ctx, p.ID, "", nil)
	require.NoError(t, err)
	f.Clock.Advance(time.Hour)

	before, err := f.Planned.Get(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(30)})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err), "the execution error reaches the caller")

	after, err := f.Planned.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	children, err := f.Planned.List(ctx, planned.ListFilter{ParentPlannedID: &p.ID})
	require.NoError(t, err)
	assert.Empty(t, children.Items)

	assert.True(t, f.Remaining(t, stock.ID).Equal(types.NewQuantity(20)))
	issues, err := f.Ledger.Query(ctx, ledger.Filter{Types: []ledger.MovementType{ledger.TypeIssue}})
	require.NoError(t, err)
	assert.Empty(t, issues.Items)

	actions := f.Audit.Actions()
	assert.Equal(t, planned.ActionCompensate, actions[len(actions)-1])
}

func TestComplete_CompensatesFailedReceive(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()

	p := createPlanned(t, f, planned.TypeReceive, f.Milk, f.Shop, 100)
	before, err := f.Planned.Get(ctx, p.ID)
	require.NoError(t, err)

	// The destination disappears between planning and execution.
	f.Catalog.RemoveLocation(f.Shop.ID)
	f.Clock.Advance(time.Hour)

	for _, qty := range []int64{30, 100} {
		_, err = f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(qty)})
		require.Error(t, err)
		assert.True(t, apperror.IsNotFound(err))

		after, err := f.Planned.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after, "record must be unchanged after completing %d", qty)
	}

	lots, err := f.Lots.List(ctx, lot.ListFilter{IncludeEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, lots.Items)

	ms, err := f.Ledger.Query(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, ms.Items)

	all, err := f.Planned.List(ctx, planned.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Items, 1, "no slice survives compensation")
}

func TestComplete_ConcurrentCompletionsNeverOverfulfil(t *testing.T) {
	f := testutil.NewFixture(t)
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.Planned.Complete(f.Ctx(), p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(60)})
			errs <- err
		}()
	}

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	assert.True(t,
		apperror.IsConcurrentModification(failures[0]) || apperror.HasCode(failures[0], apperror.CodeValidation),
		"loser sees a lost race, got %v", failures[0])

	after, err := f.Planned.Get(f.Ctx(), p.ID)
	require.NoError(t, err)
	assert.True(t, after.Quantity.Equal(types.NewQuantity(40)))

	lots, err := f.Lots.List(f.Ctx(), lot.ListFilter{ItemID: &f.Flour.ID})
	require.NoError(t, err)
	assert.Len(t, lots.Items, 1)
}

func TestDelete_DetachesSlices(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 10)

	res, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(4)})
	require.NoError(t, err)

	require.NoError(t, f.Planned.Delete(ctx, p.ID))

	slice, err := f.Planned.Get(ctx, res.CompletedPartial.ID)
	require.NoError(t, err)
	assert.Nil(t, slice.ParentPlannedID)
	assert.Equal(t, planned.StatusCompleted, slice.Status)
}

func TestComplete_SliceNumbersSurviveDeletes(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	p := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 100)

	complete := func() *planned.PlannedTransaction {
		res, err := f.Planned.Complete(ctx, p.ID, planned.CompleteRequest{ActualQuantity: types.NewQuantity(10)})
		require.NoError(t, err)
		require.NotNil(t, res.CompletedPartial)
		return res.CompletedPartial
	}

	first := complete()
	second := complete()
	assert.Equal(t, p.Number+"/2", second.Number)

	err := f.Planned.Delete(ctx, first.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "slices are immutable")

	// Compensation removes a slice directly through the repository.
	require.NoError(t, f.PlannedRepo.Delete(context.Background(), first.ID))

	third := complete()
	assert.Equal(t, p.Number+"/3", third.Number)

	parent, err := f.Planned.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, parent.Quantity.Equal(types.NewQuantity(70)))
}

func TestSliceSeq(t *testing.T) {
	tests := []struct {
		number string
		want   int
		ok     bool
	}{
		{"PR-2026-00001/1", 1, true},
		{"PR-2026-00001/12", 12, true},
		{"PR-2026-00001", 0, false},
		{"PR-2026-00011/3", 0, false},
		{"PR-2026-00001/x", 0, false},
		{"PR-2026-00001/0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			seq, ok := planned.SliceSeq("PR-2026-00001", tt.number)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, seq)
		})
	}
}

func TestList_Filters(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()
	r := createPlanned(t, f, planned.TypeReceive, f.Flour, f.Warehouse, 10)
	createPlanned(t, f, planned.TypeIssue, f.Flour, f.Shop, 10)
	_, err := f.Planned.Approve(ctx, r.ID, "", nil)
	require.NoError(t, err)

	typ := planned.TypeReceive
	res, err := f.Planned.List(ctx, planned.ListFilter{Type: &typ})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, r.ID, res.Items[0].ID)

	res, err = f.Planned.List(ctx, planned.ListFilter{Statuses: []planned.Status{planned.StatusPending}})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	res, err = f.Planned.List(ctx, planned.ListFilter{LocationID: &f.Shop.ID})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)

	_, err = f.Planned.List(ctx, planned.ListFilter{Statuses: []planned.Status{"DONE"}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
