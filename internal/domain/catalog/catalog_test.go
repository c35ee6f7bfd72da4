package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
)

type stubResolver map[string]string

func (s stubResolver) ResolveActorName(_ context.Context, userID string) (string, error) {
	if name, ok := s[userID]; ok {
		return name, nil
	}
	return "", errors.New("unknown actor")
}

func TestResolveActorName(t *testing.T) {
	ctx := context.Background()
	r := stubResolver{"u1": "Dana"}

	assert.Equal(t, "Dana", ResolveActorName(ctx, r, "u1"))
	assert.Equal(t, DefaultActorName, ResolveActorName(ctx, r, "u2"))
	assert.Equal(t, DefaultActorName, ResolveActorName(ctx, r, ""))
	assert.Equal(t, DefaultActorName, ResolveActorName(ctx, nil, "u1"))
}

func TestItem_ExpirationFrom(t *testing.T) {
	item := &Item{ShelfLifeDays: 10}
	at := time.Date(2026, 1, 25, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 2, 4, 8, 0, 0, 0, time.UTC), item.ExpirationFrom(at))
}

func TestItem_CheckUnit(t *testing.T) {
	item := &Item{DefaultUnit: "kg"}

	unit, err := item.CheckUnit("")
	require.NoError(t, err)
	assert.Equal(t, "kg", unit)

	unit, err = item.CheckUnit("KG")
	require.NoError(t, err)
	assert.Equal(t, "kg", unit)

	_, err = item.CheckUnit("pcs")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestLocation_CanHoldStock(t *testing.T) {
	loc := &Location{ID: id.New(), IsActive: true}
	assert.NoError(t, loc.CanHoldStock())

	loc.IsActive = false
	assert.Error(t, loc.CanHoldStock())
}
