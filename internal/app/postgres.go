package app

import (
	"fmt"

	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/labels"
	"lotledger/internal/infrastructure/numerator"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/internal/infrastructure/storage/postgres/catalog_repo"
	"lotledger/internal/infrastructure/storage/postgres/lot_repo"
	"lotledger/internal/infrastructure/storage/postgres/movement_repo"
	"lotledger/internal/infrastructure/storage/postgres/planned_repo"
	"lotledger/pkg/config"
)

// Postgres holds the database-backed adapters behind a Deps.
type Postgres struct {
	TxManager *postgres.TxManager
	Outbox    *postgres.OutboxPublisher
	Audit     *postgres.AuditService
	Items     *catalog_repo.ItemRepo
	Locations *catalog_repo.LocationRepo
	Actors    *catalog_repo.ActorRepo
}

// NewPostgres wires every storage port to pool. Label requests go through
// the transactional outbox; numbering runs on the pool outside business
// transactions.
func NewPostgres(pool *postgres.Pool, cfg config.Config) (*Postgres, Deps, error) {
	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, Deps{}, fmt.Errorf("audit service: %w", err)
	}

	pg := &Postgres{
		TxManager: txm,
		Outbox:    postgres.NewOutboxPublisher(txm),
		Audit:     audit,
		Items:     catalog_repo.NewItemRepo(txm),
		Locations: catalog_repo.NewLocationRepo(txm),
		Actors:    catalog_repo.NewActorRepo(txm),
	}

	lotCfg := lot.DefaultConfig()
	if cfg.Inventory.ExpiringWindow > 0 {
		lotCfg.ExpiringWindow = cfg.Inventory.ExpiringWindow
	}
	if cfg.Inventory.IdentityRetries > 0 {
		lotCfg.IdentityRetries = cfg.Inventory.IdentityRetries
	}

	deps := Deps{
		TxManager: txm,
		Repos: Repositories{
			Lots:      lot_repo.New(txm),
			Movements: movement_repo.New(txm),
			Planned:   planned_repo.New(txm),
			Items:     pg.Items,
			Locations: pg.Locations,
			Actors:    pg.Actors,
		},
		Numerator: numerator.New(pool.Pool),
		Labels:    labels.NewOutboxSink(txm, pg.Outbox),
		Auditor:   audit,
		LotConfig: lotCfg,
	}
	return pg, deps, nil
}
