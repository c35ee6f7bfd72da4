// Package catalog_repo provides PostgreSQL implementations of the reference
// data the ledger reads: items, locations and actors.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/domain"
	"lotledger/internal/infrastructure/storage/postgres"
)

// BaseCatalogRepo provides common read and upsert operations for catalog
// tables keyed by id with a unique code. Embed it in specific repositories.
type BaseCatalogRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
}

// NewBaseCatalogRepo creates a new base catalog repository.
func NewBaseCatalogRepo[T any](txm *postgres.TxManager, tableName, entityName string) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
	}
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.selectCols...).From(r.tableName)
}

// getBy retrieves one entity by an equality on column.
func (r *BaseCatalogRepo[T]) getBy(ctx context.Context, column string, value any) (*T, error) {
	sql, args, err := r.baseSelect().Where(squirrel.Eq{column: value}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	entity := new(T)
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), entity, sql, args...); err != nil {
		return nil, postgres.MapError(err, r.entityName, value)
	}
	return entity, nil
}

// GetByCode retrieves entity by code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (*T, error) {
	return r.getBy(ctx, "code", code)
}

// Upsert inserts entity or overwrites the row with the same id.
func (r *BaseCatalogRepo[T]) Upsert(ctx context.Context, entity *T) error {
	sql, args, err := r.upsertSQL(entity)
	if err != nil {
		return err
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, r.entityName, "upsert")
	}
	return nil
}

func (r *BaseCatalogRepo[T]) upsertSQL(entity *T) (string, []any, error) {
	suffix := "ON CONFLICT (id) DO UPDATE SET "
	first := true
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" {
			continue
		}
		if !first {
			suffix += ", "
		}
		suffix += col + " = EXCLUDED." + col
		first = false
	}

	sql, args, err := postgres.InsertStruct(r.tableName, entity, r.selectCols).Suffix(suffix).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build upsert: %w", err)
	}
	return sql, args, nil
}

// List retrieves entities ordered by code.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, page domain.Page) (domain.ListResult[*T], error) {
	return postgres.SelectPage[*T](ctx, r.txm.GetQuerier(ctx), r.baseSelect(), page, "code ASC")
}
