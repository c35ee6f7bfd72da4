package catalog_repo

import (
	"context"

	"lotledger/internal/core/id"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/infrastructure/storage/postgres"
)

// ItemRepo implements catalog.ItemCatalog.
type ItemRepo struct {
	*BaseCatalogRepo[catalog.Item]
}

var _ catalog.ItemCatalog = (*ItemRepo)(nil)

// NewItemRepo creates a new item repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	return &ItemRepo{BaseCatalogRepo: NewBaseCatalogRepo[catalog.Item](txm, "items", "item")}
}

func (r *ItemRepo) GetItem(ctx context.Context, itemID id.ID) (*catalog.Item, error) {
	return r.getBy(ctx, "id", itemID)
}
