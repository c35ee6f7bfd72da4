// Package main provides a CLI tool for migrating the database and seeding
// demo catalog data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"lotledger/internal/app"
	"lotledger/internal/core/apperror"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/internal/infrastructure/storage/postgres/migrations"
	"lotledger/pkg/config"
	"lotledger/pkg/logger"
)

const seedActorID = "seed"

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load("seed")
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("LOTLEDGER_DATABASE_URL environment variable is required")
	}

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	applied, err := migrations.Up(ctx, pool.Pool)
	if err != nil {
		log.Fatalw("failed to apply migrations", "error", err)
	}
	log.Infow("migrations applied", "count", applied)

	pg, deps, err := app.NewPostgres(pool, *cfg)
	if err != nil {
		log.Fatalw("failed to wire storage", "error", err)
	}

	items, locations, err := seedCatalog(ctx, pg, log)
	if err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	if os.Getenv("SEED_DEMO_STOCK") == "true" {
		if err := seedStock(ctx, app.New(deps), items, locations, log); err != nil {
			log.Fatalw("failed to seed demo stock", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedCatalog inserts demo items, locations and actors. Existing codes are
// kept as they are, so the command can be re-run.
func seedCatalog(ctx context.Context, pg *app.Postgres, log *logger.Logger) (map[string]*catalog.Item, map[string]*catalog.Location, error) {
	now := time.Now().UTC()

	items := []*catalog.Item{
		{Code: "MILK-1L", Name: "Whole milk 1L", ShelfLifeDays: 7, DefaultUnit: "pcs", Category: "dairy"},
		{Code: "YOGURT", Name: "Greek yogurt", ShelfLifeDays: 21, DefaultUnit: "pcs", Category: "dairy"},
		{Code: "FLOUR", Name: "Wheat flour", ShelfLifeDays: 180, DefaultUnit: "kg", Category: "dry"},
		{Code: "BREAD", Name: "Sourdough loaf", ShelfLifeDays: 3, DefaultUnit: "pcs", Category: "bakery"},
		{Code: "BUTTER", Name: "Unsalted butter", ShelfLifeDays: 60, DefaultUnit: "kg", Category: "dairy"},
	}
	seededItems := make(map[string]*catalog.Item, len(items))
	for _, item := range items {
		existing, err := pg.Items.GetByCode(ctx, item.Code)
		switch {
		case err == nil:
			seededItems[item.Code] = existing
			continue
		case !apperror.IsNotFound(err):
			return nil, nil, fmt.Errorf("look up item %s: %w", item.Code, err)
		}

		item.ID = id.New()
		item.CreatedAt = now
		if err := pg.Items.Upsert(ctx, item); err != nil {
			return nil, nil, fmt.Errorf("insert item %s: %w", item.Code, err)
		}
		seededItems[item.Code] = item
		log.Infow("item seeded", "code", item.Code, "id", item.ID)
	}

	locations := []*catalog.Location{
		{Code: "WH-MAIN", Name: "Main warehouse", Type: catalog.LocationWarehouse, IsActive: true},
		{Code: "KITCHEN", Name: "Production kitchen", Type: catalog.LocationProduction, IsActive: true},
		{Code: "STORE-1", Name: "Retail store", Type: catalog.LocationStore, IsActive: true},
		{Code: "TRUCK-1", Name: "Delivery truck", Type: catalog.LocationTransit, IsActive: true},
	}
	seededLocations := make(map[string]*catalog.Location, len(locations))
	for _, loc := range locations {
		existing, err := pg.Locations.GetByCode(ctx, loc.Code)
		switch {
		case err == nil:
			seededLocations[loc.Code] = existing
			continue
		case !apperror.IsNotFound(err):
			return nil, nil, fmt.Errorf("look up location %s: %w", loc.Code, err)
		}

		loc.ID = id.New()
		loc.CreatedAt = now
		if err := pg.Locations.Upsert(ctx, loc); err != nil {
			return nil, nil, fmt.Errorf("insert location %s: %w", loc.Code, err)
		}
		seededLocations[loc.Code] = loc
		log.Infow("location seeded", "code", loc.Code, "id", loc.ID)
	}

	actors := map[string]string{
		seedActorID: "Seed script",
		"manager-1": "Store manager",
		"picker-1":  "Warehouse picker",
	}
	for userID, name := range actors {
		if err := pg.Actors.Put(ctx, userID, name); err != nil {
			return nil, nil, fmt.Errorf("upsert actor %s: %w", userID, err)
		}
	}

	return seededItems, seededLocations, nil
}

// seedStock receives a few lots so the API has something to allocate from.
func seedStock(ctx context.Context, services *app.Services, items map[string]*catalog.Item, locations map[string]*catalog.Location, log *logger.Logger) error {
	ctx = appctx.WithActor(ctx, &appctx.Actor{UserID: seedActorID})
	warehouse := locations["WH-MAIN"]

	receipts := []struct {
		code string
		qty  int64
		age  time.Duration
	}{
		{"MILK-1L", 48, 5 * 24 * time.Hour},
		{"MILK-1L", 24, 24 * time.Hour},
		{"FLOUR", 200, 30 * 24 * time.Hour},
		{"BUTTER", 10, 0},
	}
	for _, r := range receipts {
		item := items[r.code]
		created, err := services.Inventory.Receive(ctx, inventory.ReceiveRequest{
			ItemID:     item.ID,
			LocationID: warehouse.ID,
			Quantity:   types.NewQuantity(r.qty),
			ReceivedAt: time.Now().UTC().Add(-r.age),
		})
		if err != nil {
			return fmt.Errorf("receive %s: %w", r.code, err)
		}
		log.Infow("lot received", "item", r.code, "identity", created.IdentityString(), "quantity", r.qty)
	}
	return nil
}
