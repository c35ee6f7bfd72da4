// Package planned_repo provides the PostgreSQL implementation of planned.Repository.
package planned_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/planned"
	"lotledger/internal/infrastructure/storage/postgres"
)

const (
	tableName = "planned_transactions"
	entity    = "planned transaction"
)

// immutableColumns are never written by Update.
var immutableColumns = map[string]bool{"id": true, "number": true, "created_at": true}

// Repo implements planned.Repository.
type Repo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ planned.Repository = (*Repo)(nil)

// New creates a planned-transaction repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		columns: postgres.ExtractDBColumns[planned.PlannedTransaction](),
	}
}

func (r *Repo) Create(ctx context.Context, p *planned.PlannedTransaction) error {
	sql, args, err := postgres.InsertStruct(tableName, p, r.columns).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, entity, p.Number)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, plannedID id.ID, lock domain.LockMode) (*planned.PlannedTransaction, error) {
	q := postgres.WithLock(
		postgres.Builder().Select(r.columns...).From(tableName).Where(squirrel.Eq{"id": plannedID}),
		lock,
	)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p planned.PlannedTransaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		return nil, postgres.MapError(err, entity, plannedID)
	}
	return &p, nil
}

func (r *Repo) Update(ctx context.Context, p *planned.PlannedTransaction) error {
	data := postgres.StructToMap(p)
	set := make(map[string]any, len(data))
	for _, col := range r.columns {
		if !immutableColumns[col] {
			set[col] = data[col]
		}
	}

	sql, args, err := postgres.Builder().
		Update(tableName).
		SetMap(set).
		Where(squirrel.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, entity, p.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, p.ID)
	}
	return nil
}

// Delete relies on the parent_planned_id foreign key (ON DELETE SET NULL) to
// detach fulfilled slices.
func (r *Repo) Delete(ctx context.Context, plannedID id.ID) error {
	sql, args, err := postgres.Builder().
		Delete(tableName).
		Where(squirrel.Eq{"id": plannedID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, entity, plannedID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, plannedID)
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f planned.ListFilter) (domain.ListResult[*planned.PlannedTransaction], error) {
	q := applyFilter(postgres.Builder().Select(r.columns...).From(tableName), f)
	return postgres.SelectPage[*planned.PlannedTransaction](ctx, r.txm.GetQuerier(ctx), q, f.Page,
		"scheduled_date DESC", "id DESC")
}

func applyFilter(q squirrel.SelectBuilder, f planned.ListFilter) squirrel.SelectBuilder {
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"transaction_type": string(*f.Type)})
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where(squirrel.Eq{"status": statuses})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *f.ItemID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Eq{"location_id": *f.LocationID})
	}
	if f.ParentPlannedID != nil {
		q = q.Where(squirrel.Eq{"parent_planned_id": *f.ParentPlannedID})
	}
	if f.OnlyRoots {
		q = q.Where(squirrel.Eq{"parent_planned_id": nil})
	}
	if f.ScheduledFrom != nil {
		q = q.Where(squirrel.GtOrEq{"scheduled_date": *f.ScheduledFrom})
	}
	if f.ScheduledTo != nil {
		q = q.Where(squirrel.Lt{"scheduled_date": *f.ScheduledTo})
	}
	return q
}

// LastSliceSeq matches slices by number prefix so that slices detached from
// a deleted parent still hold their sequence.
func (r *Repo) LastSliceSeq(ctx context.Context, parentNumber string) (int, error) {
	sql, args, err := lastSliceSQL(parentNumber)
	if err != nil {
		return 0, fmt.Errorf("build last slice: %w", err)
	}

	var n int
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("last slice: %w", err)
	}
	return n, nil
}

func lastSliceSQL(parentNumber string) (string, []any, error) {
	return postgres.Builder().
		Select("COALESCE(MAX(CAST(split_part(number, '/', 2) AS INTEGER)), 0)").
		From(tableName).
		Where(squirrel.Like{"number": parentNumber + "/%"}).
		ToSql()
}

// ReserveCompletion is a single conditional UPDATE: of two concurrent
// completions that together exceed the remaining quantity, the second
// matches no row.
func (r *Repo) ReserveCompletion(
	ctx context.Context,
	plannedID id.ID,
	amount types.Quantity,
	completedBy string,
	at time.Time,
) (*planned.PlannedTransaction, error) {
	sql, args, err := r.reserveSQL(plannedID, amount, completedBy, at)
	if err != nil {
		return nil, err
	}

	var p planned.PlannedTransaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if postgres.IsNoRows(err) {
			return nil, apperror.NewConcurrentModification(entity, plannedID).
				WithDetail("amount", amount.String())
		}
		return nil, postgres.MapError(err, entity, plannedID)
	}
	return &p, nil
}

func (r *Repo) reserveSQL(plannedID id.ID, amount types.Quantity, completedBy string, at time.Time) (string, []any, error) {
	remains := "quantity - ? > 0"
	sql, args, err := postgres.Builder().
		Update(tableName).
		Set("quantity", squirrel.Expr("quantity - ?", amount)).
		Set("status", squirrel.Expr("CASE WHEN "+remains+" THEN ? ELSE ? END",
			amount, planned.StatusPending, planned.StatusCompleted)).
		Set("completed_by", squirrel.Expr("CASE WHEN "+remains+" THEN completed_by ELSE ? END",
			amount, completedBy)).
		Set("completed_at", squirrel.Expr("CASE WHEN "+remains+" THEN completed_at ELSE ?::timestamptz END",
			amount, at)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": plannedID}).
		Where(squirrel.GtOrEq{"quantity": amount}).
		Where(squirrel.Eq{"status": []string{string(planned.StatusPending), string(planned.StatusApproved)}}).
		Suffix("RETURNING " + strings.Join(r.columns, ", ")).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build reserve: %w", err)
	}
	return sql, args, nil
}

func (r *Repo) ReleaseCompletion(ctx context.Context, prior *planned.PlannedTransaction, amount types.Quantity) error {
	sql, args, err := postgres.Builder().
		Update(tableName).
		Set("quantity", squirrel.Expr("quantity + ?", amount)).
		Set("status", prior.Status).
		Set("completed_by", prior.CompletedBy).
		Set("completed_at", prior.CompletedAt).
		Set("updated_at", prior.UpdatedAt).
		Where(squirrel.Eq{"id": prior.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError(err, entity, prior.ID)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entity, prior.ID)
	}
	return nil
}
