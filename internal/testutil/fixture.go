// Package testutil provides a memory-backed ledger for service tests,
// with a controllable clock and seeded catalog data.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lotledger/internal/app"
	"lotledger/internal/core/barcode"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/numerator"
	"lotledger/internal/infrastructure/storage/memory"
)

// Epoch is the fixture's initial clock reading.
var Epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Fixture is a fully wired in-memory ledger.
type Fixture struct {
	*app.Services

	Store     *memory.Store
	TxManager *memory.TxManager
	Catalog   *memory.Catalog

	LotRepo      *memory.LotRepo
	MovementRepo *memory.MovementRepo
	PlannedRepo  *memory.PlannedRepo
	Labels       *memory.LabelRecorder
	Audit        *memory.AuditLog
	Clock        *Clock

	// Seeded catalog: milk expires after 7 days, flour after 180.
	Milk      *catalog.Item
	Flour     *catalog.Item
	Warehouse *catalog.Location
	Shop      *catalog.Location
}

// ActorID is the user the fixture context acts as.
const ActorID = "user-1"

// ActorName is the display name of ActorID.
const ActorName = "Dana Baker"

// NewFixture builds a fixture with seeded items, locations and one actor.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	store := memory.NewStore()
	f := &Fixture{
		Store:        store,
		TxManager:    memory.NewTxManager(store),
		Catalog:      memory.NewCatalog(store),
		LotRepo:      memory.NewLotRepo(store),
		MovementRepo: memory.NewMovementRepo(store),
		PlannedRepo:  memory.NewPlannedRepo(store),
		Labels:       memory.NewLabelRecorder(),
		Audit:        memory.NewAuditLog(),
		Clock:        &Clock{now: Epoch},
	}

	f.Milk = &catalog.Item{ID: id.New(), Code: "MILK", Name: "Whole milk", ShelfLifeDays: 7, DefaultUnit: "l", Category: "dairy", CreatedAt: Epoch}
	f.Flour = &catalog.Item{ID: id.New(), Code: "FLOUR", Name: "Wheat flour", ShelfLifeDays: 180, DefaultUnit: "kg", Category: "dry", CreatedAt: Epoch}
	f.Warehouse = &catalog.Location{ID: id.New(), Code: "WH", Name: "Main warehouse", Type: catalog.LocationWarehouse, IsActive: true, CreatedAt: Epoch}
	f.Shop = &catalog.Location{ID: id.New(), Code: "SHOP", Name: "Shop floor", Type: catalog.LocationStore, IsActive: true, CreatedAt: Epoch}

	for _, item := range []*catalog.Item{f.Milk, f.Flour} {
		f.Catalog.PutItem(item)
	}
	for _, loc := range []*catalog.Location{f.Warehouse, f.Shop} {
		f.Catalog.PutLocation(loc)
	}
	f.Catalog.PutActor(ActorID, ActorName)

	f.Services = app.New(app.Deps{
		TxManager: f.TxManager,
		Repos: app.Repositories{
			Lots:      f.LotRepo,
			Movements: f.MovementRepo,
			Planned:   f.PlannedRepo,
			Items:     f.Catalog,
			Locations: f.Catalog,
			Actors:    f.Catalog,
		},
		Identities: barcode.NewGeneratorWithClock(f.Clock.Now),
		Numerator:  numerator.NewMemory(),
		Labels:     f.Labels,
		Auditor:    f.Audit,
		LotConfig:  lot.DefaultConfig(),
	})
	f.Lots.WithClock(f.Clock.Now)
	f.Ledger.WithClock(f.Clock.Now)
	f.Planned.WithClock(f.Clock.Now)

	return f
}

// Ctx returns a context acting as ActorID.
func (f *Fixture) Ctx() context.Context {
	return actorContext()
}

func actorContext() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{UserID: ActorID})
}

// Receive creates a lot of item at location received now with the given
// expiration, failing the test on error.
func (f *Fixture) Receive(t testing.TB, item *catalog.Item, loc *catalog.Location, qty string, expiresIn time.Duration) *lot.Lot {
	t.Helper()
	return receive(t, f.Services, f.Clock, item, loc, qty, expiresIn)
}

func receive(t testing.TB, s *app.Services, clock *Clock, item *catalog.Item, loc *catalog.Location, qty string, expiresIn time.Duration) *lot.Lot {
	t.Helper()
	exp := clock.Now().Add(expiresIn)
	l, err := s.Inventory.Receive(actorContext(), inventory.ReceiveRequest{
		ItemID:         item.ID,
		LocationID:     loc.ID,
		Quantity:       types.MustQuantity(qty),
		ExpirationDate: &exp,
	})
	require.NoError(t, err)
	return l
}

// Remaining reads the remaining quantity of a lot.
func (f *Fixture) Remaining(t testing.TB, lotID id.ID) types.Quantity {
	t.Helper()
	l, err := f.Lots.GetByID(context.Background(), lotID)
	require.NoError(t, err)
	return l.RemainingQuantity
}

// Day is 24 hours.
const Day = 24 * time.Hour
