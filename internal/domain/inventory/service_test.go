package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/barcode"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/testutil"
)

func movementsOf(t *testing.T, f *testutil.Fixture, filter ledger.Filter) []*ledger.Movement {
	t.Helper()
	filter.Limit = 500
	res, err := f.Ledger.Query(context.Background(), filter)
	require.NoError(t, err)
	return res.Items
}

func TestReceive_DerivesLotFields(t *testing.T) {
	f := testutil.NewFixture(t)

	l, err := f.Inventory.Receive(f.Ctx(), inventory.ReceiveRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.MustQuantity("12.5"),
		UnitPrice:  types.MustQuantity("0.80"),
	})
	require.NoError(t, err)

	require.NotNil(t, l.Identity)
	assert.True(t, barcode.Validate(*l.Identity))
	assert.Equal(t, "l", l.Unit)
	assert.True(t, l.InitialQuantity.Equal(types.MustQuantity("12.5")))
	assert.True(t, l.ReceivedAt.Equal(testutil.Epoch))
	assert.True(t, l.FirstReceivedAt.Equal(testutil.Epoch))
	assert.True(t, l.ExpirationDate.Equal(testutil.Epoch.AddDate(0, 0, 7)))
	assert.Equal(t, lot.StatusNormal, l.Status)

	ms := movementsOf(t, f, ledger.Filter{})
	require.Len(t, ms, 1)
	m := ms[0]
	assert.Equal(t, ledger.TypeReceive, m.Type)
	assert.Equal(t, l.ID, m.LotID)
	assert.Equal(t, *l.Identity, m.LotIdentity)
	assert.Nil(t, m.FromLocationID)
	require.NotNil(t, m.ToLocationID)
	assert.Equal(t, f.Warehouse.ID, *m.ToLocationID)
	assert.Equal(t, testutil.ActorID, m.ActorID)
	assert.Equal(t, testutil.ActorName, m.ActorName)
}

func TestReceive_ShortShelfLifeIsExpiring(t *testing.T) {
	f := testutil.NewFixture(t)
	l := f.Receive(t, f.Milk, f.Warehouse, "1", 2*testutil.Day)
	assert.Equal(t, lot.StatusExpiring, l.Status)
}

func TestReceive_UnknownActorIsSystem(t *testing.T) {
	f := testutil.NewFixture(t)

	_, err := f.Inventory.Receive(context.Background(), inventory.ReceiveRequest{
		ItemID:     f.Flour.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.NewQuantity(1),
	})
	require.NoError(t, err)

	ms := movementsOf(t, f, ledger.Filter{})
	require.Len(t, ms, 1)
	assert.Equal(t, "system", ms[0].ActorName)
}

func TestReceive_Rejections(t *testing.T) {
	f := testutil.NewFixture(t)
	bad := "17000000000009"
	dup := f.Receive(t, f.Flour, f.Warehouse, "1", 30*testutil.Day)

	tests := []struct {
		name string
		req  inventory.ReceiveRequest
		code string
	}{
		{
			name: "zero quantity",
			req:  inventory.ReceiveRequest{ItemID: f.Milk.ID, LocationID: f.Warehouse.ID, Quantity: types.Zero()},
			code: apperror.CodeValidation,
		},
		{
			name: "foreign unit",
			req:  inventory.ReceiveRequest{ItemID: f.Milk.ID, LocationID: f.Warehouse.ID, Quantity: types.NewQuantity(1), Unit: "kg"},
			code: apperror.CodeValidation,
		},
		{
			name: "unknown item",
			req:  inventory.ReceiveRequest{ItemID: f.Warehouse.ID, LocationID: f.Warehouse.ID, Quantity: types.NewQuantity(1)},
			code: apperror.CodeNotFound,
		},
		{
			name: "unknown location",
			req:  inventory.ReceiveRequest{ItemID: f.Milk.ID, LocationID: f.Milk.ID, Quantity: types.NewQuantity(1)},
			code: apperror.CodeNotFound,
		},
		{
			name: "bad checksum",
			req:  inventory.ReceiveRequest{ItemID: f.Milk.ID, LocationID: f.Warehouse.ID, Quantity: types.NewQuantity(1), Identity: &bad},
			code: apperror.CodeValidation,
		},
		{
			name: "identity taken",
			req:  inventory.ReceiveRequest{ItemID: f.Milk.ID, LocationID: f.Warehouse.ID, Quantity: types.NewQuantity(1), Identity: dup.Identity},
			code: apperror.CodeDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Inventory.Receive(f.Ctx(), tt.req)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}

	assert.Len(t, movementsOf(t, f, ledger.Filter{}), 1, "rejected receipts must not leave movements")
}

func TestReceive_InactiveLocation(t *testing.T) {
	f := testutil.NewFixture(t)
	closed := *f.Shop
	closed.IsActive = false
	f.Catalog.PutLocation(&closed)

	_, err := f.Inventory.Receive(f.Ctx(), inventory.ReceiveRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Shop.ID,
		Quantity:   types.NewQuantity(1),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

type collidingIdentities struct {
	mu    sync.Mutex
	queue []string
}

func (c *collidingIdentities) Generate() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.queue[0]
	c.queue = c.queue[1:]
	return next
}

func TestReceive_RetriesIdentityCollision(t *testing.T) {
	f := testutil.NewFixture(t)
	taken := barcode.FromTimestamp(1_700_000_000_000)
	fresh := barcode.FromTimestamp(1_700_000_000_001)

	_, err := f.Inventory.Receive(f.Ctx(), inventory.ReceiveRequest{
		ItemID: f.Flour.ID, LocationID: f.Warehouse.ID, Quantity: types.NewQuantity(1), Identity: &taken,
	})
	require.NoError(t, err)

	store := lot.NewStore(f.LotRepo, f.Catalog, f.Catalog, &collidingIdentities{queue: []string{taken, fresh}}, lot.DefaultConfig())
	var created *lot.Lot
	err = f.TxManager.RunInTransaction(f.Ctx(), func(ctx context.Context) error {
		var err error
		created, err = store.Create(ctx, &lot.Lot{
			ItemID:            f.Flour.ID,
			LocationID:        f.Warehouse.ID,
			RemainingQuantity: types.NewQuantity(2),
			ReceivedAt:        testutil.Epoch,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fresh, created.IdentityString())
}

func TestReceive_LabelHandOff(t *testing.T) {
	f := testutil.NewFixture(t)

	l, err := f.Inventory.Receive(f.Ctx(), inventory.ReceiveRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.NewQuantity(6),
		PrintLabel: true,
	})
	require.NoError(t, err)

	reqs := f.Labels.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, l.IdentityString(), reqs[0].Identity)
	assert.Equal(t, f.Milk.Name, reqs[0].ItemName)
	assert.True(t, reqs[0].Quantity.Equal(types.NewQuantity(6)))
	assert.Equal(t, "l", reqs[0].Unit)

	f.Labels.FailWith(errors.New("printer offline"))
	_, err = f.Inventory.Receive(f.Ctx(), inventory.ReceiveRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.NewQuantity(1),
		PrintLabel: true,
	})
	assert.NoError(t, err, "printing failures must not fail the receipt")
}

func TestIssue_RecordsOneMovementPerLot(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Receive(t, f.Milk, f.Warehouse, "30", 3*testutil.Day)
	b := f.Receive(t, f.Milk, f.Warehouse, "50", 8*testutil.Day)

	result, err := f.Inventory.Issue(f.Ctx(), inventory.IssueRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.NewQuantity(40),
		Unit:       "l",
	})
	require.NoError(t, err)
	assert.True(t, result.AllocatedQuantity.Equal(types.NewQuantity(40)))

	issues := movementsOf(t, f, ledger.Filter{Types: []ledger.MovementType{ledger.TypeIssue}})
	require.Len(t, issues, 2)
	byLot := map[string]types.Quantity{}
	for _, m := range issues {
		byLot[m.LotIdentity] = m.Quantity
		require.NotNil(t, m.FromLocationID)
		assert.Equal(t, f.Warehouse.ID, *m.FromLocationID)
		assert.Nil(t, m.ToLocationID)
	}
	assert.True(t, byLot[a.IdentityString()].Equal(types.NewQuantity(30)))
	assert.True(t, byLot[b.IdentityString()].Equal(types.NewQuantity(10)))
}

func TestIssue_InsufficientStockChangesNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	a := f.Receive(t, f.Milk, f.Warehouse, "30", 3*testutil.Day)
	b := f.Receive(t, f.Milk, f.Warehouse, "50", 8*testutil.Day)

	_, err := f.Inventory.Issue(f.Ctx(), inventory.IssueRequest{
		ItemID:     f.Milk.ID,
		LocationID: f.Warehouse.ID,
		Quantity:   types.NewQuantity(100),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.True(t, f.Remaining(t, a.ID).Equal(types.NewQuantity(30)))
	assert.True(t, f.Remaining(t, b.ID).Equal(types.NewQuantity(50)))
	assert.Empty(t, movementsOf(t, f, ledger.Filter{Types: []ledger.MovementType{ledger.TypeIssue}}))
}

func TestIssue_ConcurrentRequestsNeverOversell(t *testing.T) {
	f := testutil.NewFixture(t)
	l := f.Receive(t, f.Flour, f.Warehouse, "50", 90*testutil.Day)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Inventory.Issue(f.Ctx(), inventory.IssueRequest{
				ItemID:     f.Flour.ID,
				LocationID: f.Warehouse.ID,
				Quantity:   types.NewQuantity(10),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperror.IsInsufficientStock(err):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, short)
	assert.True(t, f.Remaining(t, l.ID).IsZero())
}

func TestAvailable(t *testing.T) {
	f := testutil.NewFixture(t)
	f.Receive(t, f.Milk, f.Warehouse, "30", 3*testutil.Day)
	f.Receive(t, f.Milk, f.Warehouse, "2.5", 8*testutil.Day)
	f.Receive(t, f.Milk, f.Shop, "100", 8*testutil.Day)

	q, err := f.Inventory.Available(f.Ctx(), f.Milk.ID, f.Warehouse.ID)
	require.NoError(t, err)
	assert.True(t, q.Equal(types.MustQuantity("32.5")))

	_, err = f.Inventory.Available(f.Ctx(), f.Milk.ID, f.Milk.ID)
	assert.True(t, apperror.IsNotFound(err))
}
