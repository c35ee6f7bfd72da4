package catalog_repo

import (
	"context"

	"lotledger/internal/core/id"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/infrastructure/storage/postgres"
)

// LocationRepo implements catalog.LocationRegistry.
type LocationRepo struct {
	*BaseCatalogRepo[catalog.Location]
}

var _ catalog.LocationRegistry = (*LocationRepo)(nil)

// NewLocationRepo creates a new location repository.
func NewLocationRepo(txm *postgres.TxManager) *LocationRepo {
	return &LocationRepo{BaseCatalogRepo: NewBaseCatalogRepo[catalog.Location](txm, "locations", "location")}
}

func (r *LocationRepo) GetLocation(ctx context.Context, locationID id.ID) (*catalog.Location, error) {
	return r.getBy(ctx, "id", locationID)
}
