// Package lot_repo provides the PostgreSQL implementation of lot.Repository.
package lot_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/lot"
	"lotledger/internal/infrastructure/storage/postgres"
)

const tableName = "lots"

// fifoOrder is the consumption order of lots.
var fifoOrder = []string{"expiration_date ASC", "received_at ASC", "id ASC"}

// Repo implements lot.Repository.
type Repo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ lot.Repository = (*Repo)(nil)

// New creates a lot repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		columns: postgres.ExtractDBColumns[lot.Lot](),
	}
}

func (r *Repo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.columns...).From(tableName)
}

// Insert skips only identity conflicts so a taken identity does not abort
// the surrounding transaction; the caller retries with a fresh identity.
// Any other constraint violation still fails the statement.
func (r *Repo) Insert(ctx context.Context, l *lot.Lot) error {
	sql, args, err := r.insertSQL(l)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	var inserted id.ID
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&inserted)
	if postgres.IsNoRows(err) {
		return apperror.NewDuplicate("lot", "identity", l.IdentityString())
	}
	if err != nil {
		return postgres.MapError(err, "lot", l.ID)
	}
	return nil
}

func (r *Repo) insertSQL(l *lot.Lot) (string, []any, error) {
	return postgres.InsertStruct(tableName, l, r.columns).
		Suffix("ON CONFLICT (identity) DO NOTHING RETURNING id").
		ToSql()
}

func (r *Repo) GetByID(ctx context.Context, lotID id.ID, lock domain.LockMode) (*lot.Lot, error) {
	q := postgres.WithLock(r.baseSelect().Where(squirrel.Eq{"id": lotID}), lock)
	return r.getOne(ctx, q, lotID)
}

func (r *Repo) GetByIdentity(ctx context.Context, identity string) (*lot.Lot, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"identity": identity}), identity)
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (*lot.Lot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var l lot.Lot
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &l, sql, args...); err != nil {
		return nil, postgres.MapError(err, "lot", key)
	}
	return &l, nil
}

// FindConsumable locks the matching rows in FIFO order when asked to, so
// concurrent allocations on the same item and location serialize.
func (r *Repo) FindConsumable(ctx context.Context, itemID, locationID id.ID, lock domain.LockMode) ([]*lot.Lot, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"item_id": itemID, "location_id": locationID}).
		Where(squirrel.Gt{"remaining_quantity": 0}).
		OrderBy(fifoOrder...)
	sql, args, err := postgres.WithLock(q, lock).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []*lot.Lot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("find consumable lots: %w", err)
	}
	return lots, nil
}

func (r *Repo) SetRemaining(ctx context.Context, lotID id.ID, remaining types.Quantity, status lot.Status, at time.Time) error {
	sql, args, err := postgres.Builder().
		Update(tableName).
		Set("remaining_quantity", remaining).
		Set("status", status).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": lotID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, "lot", lotID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lotID)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f lot.ListFilter) (domain.ListResult[*lot.Lot], error) {
	return postgres.SelectPage[*lot.Lot](ctx, r.txm.GetQuerier(ctx), applyFilter(r.baseSelect(), f), f.Page,
		"received_at DESC", "id DESC")
}

func applyFilter(q squirrel.SelectBuilder, f lot.ListFilter) squirrel.SelectBuilder {
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *f.ItemID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if !f.IncludeEmpty {
		q = q.Where(squirrel.Gt{"remaining_quantity": 0})
	}
	return q
}

func (r *Repo) SumConsumable(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error) {
	sql, args, err := postgres.Builder().
		Select("COALESCE(SUM(remaining_quantity), 0)").
		From(tableName).
		Where(squirrel.Eq{"item_id": itemID, "location_id": locationID}).
		Where(squirrel.Gt{"remaining_quantity": 0}).
		ToSql()
	if err != nil {
		return types.Zero(), fmt.Errorf("build query: %w", err)
	}

	var total types.Quantity
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return types.Zero(), fmt.Errorf("sum consumable: %w", err)
	}
	return total, nil
}

// RefreshStatuses recomputes status in one statement using the same rule as
// lot.StatusAt.
func (r *Repo) RefreshStatuses(ctx context.Context, now time.Time, window time.Duration) (int64, error) {
	sql, args, err := refreshStatusesSQL(now, window)
	if err != nil {
		return 0, err
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("refresh lot statuses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func refreshStatusesSQL(now time.Time, window time.Duration) (string, []any, error) {
	status := squirrel.Expr(
		"CASE WHEN expiration_date <= ? THEN ? WHEN expiration_date <= ? THEN ? ELSE ? END",
		now, lot.StatusExpired, now.Add(window), lot.StatusExpiring, lot.StatusNormal,
	)
	sql, args, err := postgres.Builder().
		Update(tableName).
		Set("status", status).
		Set("updated_at", now).
		Where(squirrel.Gt{"remaining_quantity": 0}).
		Where(squirrel.Expr(
			"status <> CASE WHEN expiration_date <= ? THEN ? WHEN expiration_date <= ? THEN ? ELSE ? END",
			now, lot.StatusExpired, now.Add(window), lot.StatusExpiring, lot.StatusNormal,
		)).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build status refresh: %w", err)
	}
	return sql, args, nil
}
