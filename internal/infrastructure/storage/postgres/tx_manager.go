package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lotledger/internal/core/tx"
	"lotledger/pkg/logger"
)

var tracer = otel.Tracer("lotledger/tx")

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// defaultStatementTimeout bounds every statement run inside a transaction.
const defaultStatementTimeout = 30 * time.Second

type txKey struct{}

// TxManager runs read-committed transactions carried in the context.
// Repositories pick the transaction up through GetQuerier; a nested
// RunInTransaction joins the outer transaction.
type TxManager struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
}

// NewTxManager creates a transaction manager over pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool, statementTimeout: defaultStatementTimeout}
}

// WithStatementTimeout overrides the statement timeout; zero keeps the default.
func (m *TxManager) WithStatementTimeout(d time.Duration) *TxManager {
	if d > 0 {
		m.statementTimeout = d
	}
	return m
}

// RunInTransaction commits when fn returns nil and rolls back otherwise,
// including on panic.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.ReadWrite, fn)
}

// ReadOnly runs fn in a read-only transaction, or inside the caller's
// transaction when one is active.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, pgx.ReadOnly, fn)
}

func (m *TxManager) run(ctx context.Context, mode pgx.TxAccessMode, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.access_mode", string(mode))))
	defer span.End()

	err := m.begin(ctx, mode, fn)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *TxManager) begin(ctx context.Context, mode pgx.TxAccessMode, fn func(ctx context.Context) error) error {
	t, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: mode})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if m.statementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", m.statementTimeout.Milliseconds())
		if _, err := t.Exec(ctx, stmt); err != nil {
			_ = t.Rollback(context.Background())
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	if err := callWithRollback(context.WithValue(ctx, txKey{}, t), t, fn); err != nil {
		return err
	}
	if err := t.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// callWithRollback rolls back on a background context so a cancelled
// request still releases its locks.
func callWithRollback(ctx context.Context, t pgx.Tx, fn func(ctx context.Context) error) error {
	defer func() {
		if r := recover(); r != nil {
			_ = t.Rollback(context.Background())
			panic(r)
		}
	}()

	if err := fn(ctx); err != nil {
		if rbErr := t.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	t, _ := ctx.Value(txKey{}).(pgx.Tx)
	return t
}

// Querier is the subset of pgx shared by pools and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the active transaction or the pool.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}
