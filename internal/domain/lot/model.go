// Package lot provides the Lot Store: the durable record of physical stock,
// one row per received batch.
package lot

import (
	"context"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

// Status is the freshness of a lot relative to its expiration date.
type Status string

const (
	StatusNormal   Status = "NORMAL"
	StatusExpiring Status = "EXPIRING"
	StatusExpired  Status = "EXPIRED"
)

// StatusAt computes the status of a lot expiring at expiration, seen at now.
// A lot is EXPIRING once now is within window of its expiration.
func StatusAt(expiration, now time.Time, window time.Duration) Status {
	switch {
	case !now.Before(expiration):
		return StatusExpired
	case !now.Add(window).Before(expiration):
		return StatusExpiring
	default:
		return StatusNormal
	}
}

// Lot is a discrete, independently trackable batch of stock.
//
// RemainingQuantity only decreases after creation; a top-up is a new lot.
type Lot struct {
	ID         id.ID `db:"id" json:"id"`
	ItemID     id.ID `db:"item_id" json:"itemId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	// Identity is the printed barcode. Nil only for legacy rows.
	Identity *string `db:"identity" json:"identity,omitempty"`

	UnitPrice         types.Money    `db:"unit_price" json:"unitPrice"`
	InitialQuantity   types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	RemainingQuantity types.Quantity `db:"remaining_quantity" json:"remainingQuantity"`
	Unit              string         `db:"unit" json:"unit"`

	ReceivedAt      time.Time `db:"received_at" json:"receivedAt"`
	FirstReceivedAt time.Time `db:"first_received_at" json:"firstReceivedAt"`
	ExpirationDate  time.Time `db:"expiration_date" json:"expirationDate"`
	Status          Status    `db:"status" json:"status"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IdentityString returns the identity or "" for legacy lots.
func (l *Lot) IdentityString() string {
	if l.Identity == nil {
		return ""
	}
	return *l.Identity
}

// IsConsumable reports whether the lot still holds stock.
func (l *Lot) IsConsumable() bool {
	return l.RemainingQuantity.IsPositive()
}

// Clone returns a copy safe to mutate.
func (l *Lot) Clone() *Lot {
	c := *l
	if l.Identity != nil {
		v := *l.Identity
		c.Identity = &v
	}
	return &c
}

// Validate checks the fields a new lot must carry.
func (l *Lot) Validate(_ context.Context) error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if id.IsNil(l.LocationID) {
		return apperror.NewValidation("location is required").
			WithDetail("field", "locationId")
	}
	if !l.RemainingQuantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", l.RemainingQuantity.String())
	}
	if l.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if l.ReceivedAt.IsZero() {
		return apperror.NewValidation("received time is required").
			WithDetail("field", "receivedAt")
	}
	return nil
}
