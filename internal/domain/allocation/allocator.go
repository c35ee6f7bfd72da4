// Package allocation provides the FIFO Allocator: it selects and debits lots
// for a requested quantity in expiration-then-receipt order.
package allocation

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// LotStore is the slice of the Lot Store the allocator needs.
type LotStore interface {
	// FindConsumableLots locks and returns lots in consumption order.
	FindConsumableLots(ctx context.Context, itemID, locationID id.ID) ([]*lot.Lot, error)
	// Decrement takes amount from a lot.
	Decrement(ctx context.Context, lotID id.ID, amount types.Quantity) (*lot.Lot, error)
}

// Trace records how much was taken from one lot.
type Trace struct {
	LotID           id.ID          `json:"lotId"`
	LotIdentity     string         `json:"lotIdentity"`
	AmountTaken     types.Quantity `json:"amountTaken"`
	Unit            string         `json:"unit"`
	ExpirationDate  time.Time      `json:"expirationDate"`
	FirstReceivedAt time.Time      `json:"firstReceivedAt"`
	UnitPrice       types.Money    `json:"unitPrice"`
}

// Result is the outcome of a successful allocation.
type Result struct {
	AllocatedQuantity types.Quantity `json:"allocatedQuantity"`
	Traces            []Trace        `json:"traces"`
}

// Allocator debits lots first-expired-first-out.
//
// Allocate must run inside the caller's transaction: it takes row locks on
// every candidate lot, and the caller's rollback is what undoes partial
// decrements if a later step fails.
type Allocator struct {
	lots LotStore
}

// NewAllocator creates an allocator over a lot store.
func NewAllocator(lots LotStore) *Allocator {
	return &Allocator{lots: lots}
}

// Allocate takes requested from the item's lots at the location.
//
// Either the full quantity is allocated or an INSUFFICIENT_STOCK error is
// returned before any lot is touched. A zero request returns an empty result.
func (a *Allocator) Allocate(ctx context.Context, itemID, locationID id.ID, requested types.Quantity) (*Result, error) {
	if requested.IsNegative() {
		return nil, apperror.NewValidation("requested quantity must not be negative").
			WithDetail("field", "quantity").
			WithDetail("value", requested.String())
	}
	if requested.IsZero() {
		return &Result{AllocatedQuantity: types.Zero(), Traces: []Trace{}}, nil
	}

	lots, err := a.lots.FindConsumableLots(ctx, itemID, locationID)
	if err != nil {
		return nil, fmt.Errorf("find consumable lots: %w", err)
	}

	available := types.Zero()
	for _, l := range lots {
		available = available.Add(l.RemainingQuantity)
	}

	if requested.Sub(available).GreaterThan(types.QuantityEpsilon) {
		logger.Debug(ctx, "allocation short",
			"item_id", itemID,
			"location_id", locationID,
			"requested", requested.String(),
			"available", available.String(),
		)
		return nil, apperror.NewInsufficientStock(
			itemID.String(),
			locationID.String(),
			requested.String(),
			available.String(),
		)
	}

	traces, allocated, err := a.take(ctx, lots, requested)
	if err != nil {
		return nil, err
	}

	return &Result{AllocatedQuantity: allocated, Traces: traces}, nil
}

// take walks lots in order, taking min(remaining, stillNeeded) from each.
func (a *Allocator) take(ctx context.Context, lots []*lot.Lot, requested types.Quantity) ([]Trace, types.Quantity, error) {
	stillNeeded := requested
	allocated := types.Zero()
	traces := make([]Trace, 0, len(lots))

	for _, l := range lots {
		if types.IsNegligible(stillNeeded) || stillNeeded.IsNegative() {
			break
		}

		amount := types.Min(l.RemainingQuantity, stillNeeded)
		if !amount.IsPositive() {
			continue
		}

		if _, err := a.lots.Decrement(ctx, l.ID, amount); err != nil {
			return nil, types.Zero(), fmt.Errorf("decrement lot %s: %w", l.ID, err)
		}

		traces = append(traces, Trace{
			LotID:           l.ID,
			LotIdentity:     l.IdentityString(),
			AmountTaken:     amount,
			Unit:            l.Unit,
			ExpirationDate:  l.ExpirationDate,
			FirstReceivedAt: l.FirstReceivedAt,
			UnitPrice:       l.UnitPrice,
		})
		allocated = allocated.Add(amount)
		stillNeeded = stillNeeded.Sub(amount)
	}

	return traces, allocated, nil
}

// EarliestExpiration returns the earliest expiration across traces.
func (r *Result) EarliestExpiration() time.Time {
	var earliest time.Time
	for i, t := range r.Traces {
		if i == 0 || t.ExpirationDate.Before(earliest) {
			earliest = t.ExpirationDate
		}
	}
	return earliest
}

// EarliestFirstReceived returns the earliest provenance time across traces.
func (r *Result) EarliestFirstReceived() time.Time {
	var earliest time.Time
	for i, t := range r.Traces {
		if i == 0 || t.FirstReceivedAt.Before(earliest) {
			earliest = t.FirstReceivedAt
		}
	}
	return earliest
}

// WeightedUnitPrice is the quantity-weighted average unit price of the traces.
func (r *Result) WeightedUnitPrice() types.Money {
	if !r.AllocatedQuantity.IsPositive() {
		return types.Zero()
	}
	total := types.Zero()
	for _, t := range r.Traces {
		total = total.Add(t.UnitPrice.Mul(t.AmountTaken))
	}
	return total.DivRound(r.AllocatedQuantity, 4)
}
