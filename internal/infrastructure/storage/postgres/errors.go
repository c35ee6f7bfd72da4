package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lotledger/internal/core/apperror"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgSerialization       = "40001"
	pgDeadlock            = "40P01"
)

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err)
}

// MapError converts driver errors into application errors.
// entity and key describe the row for NOT_FOUND and DUPLICATE_ENTRY messages.
func MapError(err error, entity string, key any) error {
	if err == nil {
		return nil
	}
	if IsNoRows(err) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperror.NewDuplicate(entity, pgErr.ConstraintName, fmt.Sprint(key)).WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgCheckViolation:
			return apperror.NewValidation("value violates constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgSerialization, pgDeadlock:
			return apperror.NewConcurrentModification(entity, key).WithCause(err)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}
