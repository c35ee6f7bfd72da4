// Package movement_repo provides the PostgreSQL implementation of ledger.Repository.
// The movements table is append-only: no UPDATE or DELETE is ever issued.
package movement_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/infrastructure/storage/postgres"
)

const tableName = "movements"

// copyThreshold is the batch size from which AppendBatch switches to COPY.
const copyThreshold = 32

// occurredExpr orders and filters by occurrence time, creation time when absent.
const occurredExpr = "COALESCE(occurred_at, created_at)"

// Repo implements ledger.Repository.
type Repo struct {
	txm     *postgres.TxManager
	copier  *postgres.BatchInserter
	columns []string
	selects []string
}

var _ ledger.Repository = (*Repo)(nil)

// New creates a movement repository.
func New(txm *postgres.TxManager) *Repo {
	columns := postgres.ExtractDBColumns[ledger.Movement]()
	return &Repo{
		txm:     txm,
		copier:  postgres.NewBatchInserter(txm),
		columns: columns,
		selects: selectColumns(columns),
	}
}

// selectColumns reads occurred_at through the creation-time fallback so rows
// written without an occurrence time still scan.
func selectColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		if col == "occurred_at" {
			col = occurredExpr + " AS occurred_at"
		}
		out[i] = col
	}
	return out
}

func (r *Repo) Append(ctx context.Context, m *ledger.Movement) error {
	return r.AppendBatch(ctx, []*ledger.Movement{m})
}

func (r *Repo) AppendBatch(ctx context.Context, ms []*ledger.Movement) error {
	if len(ms) == 0 {
		return nil
	}

	if len(ms) >= copyThreshold && r.txm.GetTx(ctx) != nil {
		rows := make([][]any, len(ms))
		for i, m := range ms {
			rows[i] = r.row(m)
		}
		if _, err := r.copier.CopyFromSlice(ctx, tableName, r.columns, rows); err != nil {
			return postgres.MapError(err, "movement", ms[0].ID)
		}
		return nil
	}

	q := postgres.Builder().Insert(tableName).Columns(r.columns...)
	for _, m := range ms {
		q = q.Values(r.row(m)...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError(err, "movement", ms[0].ID)
	}
	return nil
}

func (r *Repo) row(m *ledger.Movement) []any {
	data := postgres.StructToMap(m)
	values := make([]any, len(r.columns))
	for i, col := range r.columns {
		values[i] = data[col]
	}
	return values
}

func (r *Repo) Query(ctx context.Context, f ledger.Filter) (domain.ListResult[*ledger.Movement], error) {
	q := applyFilter(postgres.Builder().Select(r.selects...).From(tableName), f)
	return postgres.SelectPage[*ledger.Movement](ctx, r.txm.GetQuerier(ctx), q, f.Page,
		occurredExpr+" DESC", "id DESC")
}

type totalRow struct {
	Type  ledger.MovementType `db:"type"`
	Total types.Quantity      `db:"total"`
}

func (r *Repo) Totals(ctx context.Context, f ledger.Filter) (ledger.Totals, error) {
	q := applyFilter(postgres.Builder().Select("type", "SUM(quantity) AS total").From(tableName), f).
		GroupBy("type")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build totals: %w", err)
	}

	var rows []totalRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("movement totals: %w", err)
	}

	totals := make(ledger.Totals, len(rows))
	for _, row := range rows {
		totals[row.Type] = row.Total
	}
	return totals, nil
}

func applyFilter(q squirrel.SelectBuilder, f ledger.Filter) squirrel.SelectBuilder {
	if len(f.Types) > 0 {
		names := make([]string, len(f.Types))
		for i, t := range f.Types {
			names[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"type": names})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": *f.ItemID})
	}
	if f.LocationID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"from_location_id": *f.LocationID},
			squirrel.Eq{"to_location_id": *f.LocationID},
		})
	}
	if f.ActorID != nil {
		q = q.Where(squirrel.Eq{"actor_id": *f.ActorID})
	}
	if f.LotIdentity != nil {
		q = q.Where(squirrel.Eq{"lot_identity": *f.LotIdentity})
	}
	if f.CorrelationID != nil {
		q = q.Where(squirrel.Eq{"correlation_id": *f.CorrelationID})
	}
	if f.From != nil {
		q = q.Where(squirrel.Expr(occurredExpr+" >= ?", *f.From))
	}
	if f.To != nil {
		q = q.Where(squirrel.Expr(occurredExpr+" < ?", *f.To))
	}
	return q
}
