// Package ledger provides the Movement Ledger: an append-only journal of
// every lot quantity change.
package ledger

import (
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
)

// MovementType is the kind of quantity change.
type MovementType string

const (
	TypeReceive     MovementType = "RECEIVE"
	TypeIssue       MovementType = "ISSUE"
	TypeTransferOut MovementType = "TRANSFER_OUT"
	TypeTransferIn  MovementType = "TRANSFER_IN"
)

// AllTypes lists movement types in reporting order.
var AllTypes = []MovementType{TypeReceive, TypeIssue, TypeTransferOut, TypeTransferIn}

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case TypeReceive, TypeIssue, TypeTransferOut, TypeTransferIn:
		return true
	}
	return false
}

// Movement is an immutable journal entry.
type Movement struct {
	ID          id.ID          `db:"id" json:"id"`
	Type        MovementType   `db:"type" json:"type"`
	ItemID      id.ID          `db:"item_id" json:"itemId"`
	LotID       id.ID          `db:"lot_id" json:"lotId"`
	LotIdentity string         `db:"lot_identity" json:"lotIdentity"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Unit        string         `db:"unit" json:"unit"`

	FromLocationID *id.ID `db:"from_location_id" json:"fromLocationId,omitempty"`
	ToLocationID   *id.ID `db:"to_location_id" json:"toLocationId,omitempty"`

	ActorID   string  `db:"actor_id" json:"actorId"`
	ActorName string  `db:"actor_name" json:"actorName"`
	Note      *string `db:"note" json:"note,omitempty"`

	// CorrelationID ties together the movements of one operation: both
	// sides of a transfer, or the movements of a planned completion.
	CorrelationID *id.ID `db:"correlation_id" json:"correlationId,omitempty"`

	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Validate checks the movement shape for its type.
func (m *Movement) Validate() error {
	if !m.Type.IsValid() {
		return apperror.NewValidation("invalid movement type").
			WithDetail("field", "type").
			WithDetail("value", string(m.Type))
	}
	if id.IsNil(m.ItemID) {
		return apperror.NewValidation("item is required").WithDetail("field", "itemId")
	}
	if id.IsNil(m.LotID) {
		return apperror.NewValidation("lot is required").WithDetail("field", "lotId")
	}
	if !m.Quantity.IsPositive() {
		return apperror.NewValidation("movement quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", m.Quantity.String())
	}

	needFrom := m.Type == TypeIssue || m.Type == TypeTransferOut || m.Type == TypeTransferIn
	needTo := m.Type == TypeReceive || m.Type == TypeTransferOut || m.Type == TypeTransferIn
	if needFrom && m.FromLocationID == nil {
		return apperror.NewValidation("source location is required").
			WithDetail("field", "fromLocationId").
			WithDetail("type", string(m.Type))
	}
	if needTo && m.ToLocationID == nil {
		return apperror.NewValidation("destination location is required").
			WithDetail("field", "toLocationId").
			WithDetail("type", string(m.Type))
	}
	return nil
}

// Filter selects movements.
type Filter struct {
	Types  []MovementType
	ItemID *id.ID

	// LocationID matches either side of a movement.
	LocationID *id.ID

	ActorID       *string
	LotIdentity   *string
	CorrelationID *id.ID

	// From is inclusive, To is exclusive.
	From *time.Time
	To   *time.Time

	domain.Page
}

// Totals is the summed quantity per movement type.
type Totals map[MovementType]types.Quantity

// Get returns the total for t, zero when absent.
func (t Totals) Get(mt MovementType) types.Quantity {
	if q, ok := t[mt]; ok {
		return q
	}
	return types.Zero()
}

// Inflow is RECEIVE plus TRANSFER_IN.
func (t Totals) Inflow() types.Quantity {
	return t.Get(TypeReceive).Add(t.Get(TypeTransferIn))
}

// Outflow is ISSUE plus TRANSFER_OUT.
func (t Totals) Outflow() types.Quantity {
	return t.Get(TypeIssue).Add(t.Get(TypeTransferOut))
}
