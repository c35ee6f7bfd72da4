//go:build integration

package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lotledger/internal/app"
	"lotledger/internal/core/barcode"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/internal/infrastructure/storage/postgres/migrations"
	"lotledger/pkg/config"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	*tcpostgres.PostgresContainer
	DSN string
}

// NewPostgresContainer starts a disposable PostgreSQL server.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("lotledger_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, DSN: dsn}, nil
}

var (
	sharedOnce sync.Once
	sharedPool *postgres.Pool
	sharedErr  error
)

// sharedDatabase starts one container per test binary and migrates it.
// The container is reaped by testcontainers when the process exits.
func sharedDatabase(ctx context.Context) (*postgres.Pool, error) {
	sharedOnce.Do(func() {
		container, err := NewPostgresContainer(ctx)
		if err != nil {
			sharedErr = err
			return
		}
		cfg := postgres.DefaultPoolConfig(container.DSN)
		cfg.MinConns = 1
		sharedPool, sharedErr = postgres.NewPool(ctx, cfg)
		if sharedErr != nil {
			return
		}
		_, sharedErr = migrations.Up(ctx, sharedPool.Pool)
	})
	return sharedPool, sharedErr
}

// PostgresFixture is the ledger wired to a real database.
type PostgresFixture struct {
	*app.Services

	Pool     *postgres.Pool
	Postgres *app.Postgres
	Clock    *Clock

	Milk      *catalog.Item
	Flour     *catalog.Item
	Warehouse *catalog.Location
	Shop      *catalog.Location
}

// NewPostgresFixture truncates the shared database, seeds the same catalog
// as NewFixture and wires the services to it.
func NewPostgresFixture(t testing.TB) *PostgresFixture {
	t.Helper()
	ctx := context.Background()

	pool, err := sharedDatabase(ctx)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE movements, lots, planned_transactions, items, locations,
		actors, sys_sequences, sys_audit, sys_outbox CASCADE`)
	require.NoError(t, err)

	pg, deps, err := app.NewPostgres(pool, config.Config{})
	require.NoError(t, err)

	f := &PostgresFixture{Pool: pool, Postgres: pg, Clock: &Clock{now: Epoch}}
	deps.Identities = barcode.NewGeneratorWithClock(f.Clock.Now)
	f.Services = app.New(deps)
	f.Lots.WithClock(f.Clock.Now)
	f.Ledger.WithClock(f.Clock.Now)
	f.Planned.WithClock(f.Clock.Now)

	f.Milk = &catalog.Item{ID: id.New(), Code: "MILK", Name: "Whole milk", ShelfLifeDays: 7, DefaultUnit: "l", Category: "dairy", CreatedAt: Epoch}
	f.Flour = &catalog.Item{ID: id.New(), Code: "FLOUR", Name: "Wheat flour", ShelfLifeDays: 180, DefaultUnit: "kg", Category: "dry", CreatedAt: Epoch}
	f.Warehouse = &catalog.Location{ID: id.New(), Code: "WH", Name: "Main warehouse", Type: catalog.LocationWarehouse, IsActive: true, CreatedAt: Epoch}
	f.Shop = &catalog.Location{ID: id.New(), Code: "SHOP", Name: "Shop floor", Type: catalog.LocationStore, IsActive: true, CreatedAt: Epoch}

	for _, item := range []*catalog.Item{f.Milk, f.Flour} {
		require.NoError(t, pg.Items.Upsert(ctx, item))
	}
	for _, loc := range []*catalog.Location{f.Warehouse, f.Shop} {
		require.NoError(t, pg.Locations.Upsert(ctx, loc))
	}
	require.NoError(t, pg.Actors.Put(ctx, ActorID, ActorName))

	return f
}

// Ctx returns a context acting as ActorID.
func (f *PostgresFixture) Ctx() context.Context {
	return actorContext()
}

// Receive creates a lot expiring expiresIn from now, failing the test on error.
func (f *PostgresFixture) Receive(t testing.TB, item *catalog.Item, loc *catalog.Location, qty string, expiresIn time.Duration) *lot.Lot {
	t.Helper()
	return receive(t, f.Services, f.Clock, item, loc, qty, expiresIn)
}
