// Package app assembles the domain services from their storage and
// collaborator dependencies. cmd/server, cmd/worker and tests share it so
// every entry point wires the ledger the same way.
package app

import (
	"lotledger/internal/core/barcode"
	corenumerator "lotledger/internal/core/numerator"
	"lotledger/internal/core/tx"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/planned"
)

// Repositories groups the storage ports.
type Repositories struct {
	Lots      lot.Repository
	Movements ledger.Repository
	Planned   planned.Repository

	Items     catalog.ItemCatalog
	Locations catalog.LocationRegistry
	Actors    catalog.ActorResolver
}

// Deps is everything New needs.
type Deps struct {
	TxManager tx.Manager
	Repos     Repositories

	// Identities defaults to a wall-clock barcode generator.
	Identities lot.IdentityGenerator
	Numerator  corenumerator.Generator

	// Labels and Auditor default to no-ops.
	Labels  catalog.LabelSink
	Auditor planned.Auditor

	LotConfig lot.Config
}

// Services is the assembled domain layer.
type Services struct {
	Lots      *lot.Store
	Ledger    *ledger.Service
	Allocator *allocation.Allocator
	Inventory *inventory.Service
	Planned   *planned.Workflow
}

// New wires the domain services.
func New(d Deps) *Services {
	if d.Identities == nil {
		d.Identities = barcode.NewGenerator()
	}
	if d.Labels == nil {
		d.Labels = catalog.NopLabelSink{}
	}
	if d.Auditor == nil {
		d.Auditor = planned.NopAuditor{}
	}
	if d.LotConfig == (lot.Config{}) {
		d.LotConfig = lot.DefaultConfig()
	}

	r := d.Repos
	lots := lot.NewStore(r.Lots, r.Items, r.Locations, d.Identities, d.LotConfig)
	ledgerService := ledger.NewService(r.Movements, r.Actors)
	allocator := allocation.NewAllocator(lots)
	inv := inventory.NewService(d.TxManager, lots, ledgerService, allocator, r.Items, r.Locations, d.Labels)
	workflow := planned.NewWorkflow(d.TxManager, r.Planned, inv, r.Items, r.Locations, r.Actors, d.Numerator, d.Auditor)

	return &Services{
		Lots:      lots,
		Ledger:    ledgerService,
		Allocator: allocator,
		Inventory: inv,
		Planned:   workflow,
	}
}
