package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"lotledger/internal/domain/catalog"
	"lotledger/internal/infrastructure/storage/postgres"
)

// ActorRepo implements catalog.ActorResolver over the actors table.
type ActorRepo struct {
	txm *postgres.TxManager
}

var _ catalog.ActorResolver = (*ActorRepo)(nil)

// NewActorRepo creates a new actor repository.
func NewActorRepo(txm *postgres.TxManager) *ActorRepo {
	return &ActorRepo{txm: txm}
}

func (r *ActorRepo) ResolveActorName(ctx context.Context, userID string) (string, error) {
	sql, args, err := postgres.Builder().
		Select("display_name").
		From("actors").
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var name string
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&name); err != nil {
		return "", postgres.MapError(err, "actor", userID)
	}
	return name, nil
}

// Put registers or renames an actor.
func (r *ActorRepo) Put(ctx context.Context, userID, name string) error {
	sql, args, err := postgres.Builder().
		Insert("actors").
		Columns("id", "display_name").
		Values(userID, name).
		Suffix("ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "actor", userID)
	}
	return nil
}
