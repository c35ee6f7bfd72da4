package planned_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/planned"
	"lotledger/internal/infrastructure/storage/postgres"
)

func TestApplyFilter(t *testing.T) {
	typ := planned.TypeIssue
	q := applyFilter(postgres.Builder().Select("id").From(tableName), planned.ListFilter{
		Type:      &typ,
		Statuses:  []planned.Status{planned.StatusPending, planned.StatusApproved},
		OnlyRoots: true,
	})

	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id FROM planned_transactions WHERE transaction_type = $1 AND status IN ($2,$3) AND parent_planned_id IS NULL",
		sql)
	assert.Equal(t, []any{"ISSUE", "PENDING", "APPROVED"}, args)
}

func TestLastSliceSQL_UsesHighestSuffix(t *testing.T) {
	sql, args, err := lastSliceSQL("PR-2026-00001")
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT COALESCE(MAX(CAST(split_part(number, '/', 2) AS INTEGER)), 0) FROM planned_transactions WHERE number LIKE $1",
		sql)
	assert.Equal(t, []any{"PR-2026-00001/%"}, args)
}

func TestReserveSQL_GuardsQuantityAndStatus(t *testing.T) {
	r := &Repo{columns: []string{"id", "quantity", "status"}}
	plannedID := id.New()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	sql, args, err := r.reserveSQL(plannedID, types.NewQuantity(40), "user-1", at)
	require.NoError(t, err)

	assert.Contains(t, sql, "UPDATE planned_transactions SET quantity = quantity - $1")
	assert.Contains(t, sql, "WHERE id = $")
	assert.Contains(t, sql, "AND quantity >= $")
	assert.Contains(t, sql, "AND status IN ($")
	assert.True(t, strings.HasSuffix(sql, "RETURNING id, quantity, status"))

	assert.Equal(t, plannedID, args[len(args)-4])
	assert.Equal(t, "PENDING", args[len(args)-2])
	assert.Equal(t, "APPROVED", args[len(args)-1])
}
