package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotledger/internal/domain"
)

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// WithLock appends the row lock for mode.
func WithLock(q squirrel.SelectBuilder, mode domain.LockMode) squirrel.SelectBuilder {
	if mode == domain.LockForUpdate {
		return q.Suffix("FOR UPDATE")
	}
	return q
}

// SelectPage counts rows matched by q, then loads the requested page ordered by orderBy.
func SelectPage[T any](
	ctx context.Context,
	querier Querier,
	q squirrel.SelectBuilder,
	page domain.Page,
	orderBy ...string,
) (domain.ListResult[T], error) {
	page = page.Normalize()

	countSQL, countArgs, err := Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("count: %w", err)
	}

	sql, args, err := q.
		OrderBy(orderBy...).
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("build query: %w", err)
	}

	var items []T
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return domain.ListResult[T]{}, fmt.Errorf("list: %w", err)
	}

	return domain.NewListResult(items, total, page), nil
}

// InsertStruct builds an INSERT of every db-tagged column of v.
func InsertStruct(table string, v any, columns []string) squirrel.InsertBuilder {
	data := StructToMap(v)
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = data[col]
	}
	return Builder().Insert(table).Columns(columns...).Values(values...)
}
