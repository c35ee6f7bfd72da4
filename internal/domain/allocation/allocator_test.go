package allocation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/testutil"
)

func TestAllocate_FIFOByExpiration(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()

	b := f.Receive(t, f.Milk, f.Warehouse, "50", 8*testutil.Day)
	a := f.Receive(t, f.Milk, f.Warehouse, "30", 3*testutil.Day)
	c := f.Receive(t, f.Milk, f.Warehouse, "20", 12*testutil.Day)

	var result *allocation.Result
	err := f.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = f.Allocator.Allocate(ctx, f.Milk.ID, f.Warehouse.ID, types.NewQuantity(40))
		return err
	})
	require.NoError(t, err)

	require.Len(t, result.Traces, 2)
	assert.Equal(t, a.ID, result.Traces[0].LotID)
	assert.True(t, result.Traces[0].AmountTaken.Equal(types.NewQuantity(30)))
	assert.Equal(t, b.ID, result.Traces[1].LotID)
	assert.True(t, result.Traces[1].AmountTaken.Equal(types.NewQuantity(10)))
	assert.True(t, result.AllocatedQuantity.Equal(types.NewQuantity(40)))

	assert.True(t, f.Remaining(t, a.ID).IsZero())
	assert.True(t, f.Remaining(t, b.ID).Equal(types.NewQuantity(40)))
	assert.True(t, f.Remaining(t, c.ID).Equal(types.NewQuantity(20)), "later-expiring lot must not be touched")
}

func TestAllocate_SameExpirationOlderReceiptFirst(t *testing.T) {
	f := testutil.NewFixture(t)
	exp := testutil.Epoch.Add(5 * testutil.Day)

	first := f.Receive(t, f.Milk, f.Warehouse, "10", 5*testutil.Day)
	f.Clock.Advance(testutil.Day)
	second := f.Receive(t, f.Milk, f.Warehouse, "10", exp.Sub(f.Clock.Now()))

	result, err := f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.NewQuantity(15))
	require.NoError(t, err)

	require.Len(t, result.Traces, 2)
	assert.Equal(t, first.ID, result.Traces[0].LotID)
	assert.Equal(t, second.ID, result.Traces[1].LotID)
	assert.True(t, result.Traces[1].AmountTaken.Equal(types.NewQuantity(5)))
}

func TestAllocate_InsufficientStockTouchesNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Receive(t, f.Milk, f.Warehouse, "30", 3*testutil.Day)
	b := f.Receive(t, f.Milk, f.Warehouse, "50", 8*testutil.Day)

	_, err := f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.NewQuantity(81))
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "81", appErr.Details["requested"])
	assert.Equal(t, "80", appErr.Details["available"])

	assert.True(t, f.Remaining(t, a.ID).Equal(types.NewQuantity(30)))
	assert.True(t, f.Remaining(t, b.ID).Equal(types.NewQuantity(50)))
}

func TestAllocate_IgnoresOtherLocationsAndItems(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Receive(t, f.Milk, f.Shop, "100", 2*testutil.Day)
	f.Receive(t, f.Flour, f.Warehouse, "100", 2*testutil.Day)
	own := f.Receive(t, f.Milk, f.Warehouse, "5", 9*testutil.Day)

	result, err := f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.NewQuantity(5))
	require.NoError(t, err)
	require.Len(t, result.Traces, 1)
	assert.Equal(t, own.ID, result.Traces[0].LotID)

	_, err = f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.NewQuantity(1))
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestAllocate_ZeroAndNegative(t *testing.T) {
	f := testutil.NewFixture(t)

	result, err := f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.Zero())
	require.NoError(t, err)
	assert.Empty(t, result.Traces)
	assert.True(t, result.AllocatedQuantity.IsZero())

	_, err = f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.NewQuantity(-1))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestAllocate_EpsilonShortfallIsSatisfied(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Receive(t, f.Milk, f.Warehouse, "1", 3*testutil.Day)

	result, err := f.Allocator.Allocate(f.Ctx(), f.Milk.ID, f.Warehouse.ID, types.MustQuantity("1.0000000001"))
	require.NoError(t, err)
	assert.True(t, result.AllocatedQuantity.Equal(types.NewQuantity(1)))
}

func TestResult_Aggregates(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := f.Ctx()

	receive := func(qty, price string, days int) {
		exp := f.Clock.Now().AddDate(0, 0, days)
		_, err := f.Inventory.Receive(ctx, inventory.ReceiveRequest{
			ItemID:         f.Flour.ID,
			LocationID:     f.Warehouse.ID,
			Quantity:       types.MustQuantity(qty),
			UnitPrice:      types.MustQuantity(price),
			ExpirationDate: &exp,
		})
		require.NoError(t, err)
	}
	receive("10", "2.00", 10)
	f.Clock.Advance(testutil.Day)
	receive("30", "4.00", 20)

	result, err := f.Allocator.Allocate(ctx, f.Flour.ID, f.Warehouse.ID, types.NewQuantity(20))
	require.NoError(t, err)

	// (10*2 + 10*4) / 20
	assert.True(t, result.WeightedUnitPrice().Equal(types.MustQuantity("3")))
	assert.True(t, result.EarliestExpiration().Equal(testutil.Epoch.AddDate(0, 0, 10)))
	assert.True(t, result.EarliestFirstReceived().Equal(testutil.Epoch))
}
