package dto

import (
	"time"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/planned"
)

// PlannedMeta carries the free-form counterparty fields of an intent.
type PlannedMeta struct {
	SupplierName    *string      `json:"supplierName"`
	CustomerName    *string      `json:"customerName"`
	ShippingAddress *string      `json:"shippingAddress"`
	Notes           *string      `json:"notes"`
	UnitPrice       *types.Money `json:"unitPrice"`
}

func (m PlannedMeta) toDomain() planned.Meta {
	return planned.Meta{
		SupplierName:    m.SupplierName,
		CustomerName:    m.CustomerName,
		ShippingAddress: m.ShippingAddress,
		Notes:           m.Notes,
		UnitPrice:       m.UnitPrice,
	}
}

// CreatePlannedRequest records an intent.
type CreatePlannedRequest struct {
	Type          planned.Type   `json:"transactionType" binding:"required,oneof=RECEIVE ISSUE"`
	ItemID        id.ID          `json:"itemId"`
	LocationID    id.ID          `json:"locationId"`
	Quantity      types.Quantity `json:"quantity"`
	Unit          string         `json:"unit"`
	ScheduledDate time.Time      `json:"scheduledDate" binding:"required"`
	PlannedMeta
}

// ToDomain converts the request to the workflow input.
func (r CreatePlannedRequest) ToDomain() planned.CreateRequest {
	return planned.CreateRequest{
		Type:          r.Type,
		ItemID:        r.ItemID,
		LocationID:    r.LocationID,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		ScheduledDate: r.ScheduledDate,
		Meta:          r.PlannedMeta.toDomain(),
	}
}

// UpdatePlannedRequest edits a pending intent. Absent fields are unchanged.
type UpdatePlannedRequest struct {
	ItemID        *id.ID          `json:"itemId"`
	LocationID    *id.ID          `json:"locationId"`
	Quantity      *types.Quantity `json:"quantity"`
	Unit          *string         `json:"unit"`
	ScheduledDate *time.Time      `json:"scheduledDate"`
	PlannedMeta
}

// ToDomain converts the request to the workflow input.
func (r UpdatePlannedRequest) ToDomain() planned.UpdateRequest {
	return planned.UpdateRequest{
		ItemID:        r.ItemID,
		LocationID:    r.LocationID,
		Quantity:      r.Quantity,
		Unit:          r.Unit,
		ScheduledDate: r.ScheduledDate,
		Meta:          r.PlannedMeta.toDomain(),
	}
}

// ApproveRequest approves a pending intent. ApproverID defaults to the
// acting user.
type ApproveRequest struct {
	ApproverID string  `json:"approverId"`
	Comment    *string `json:"comment"`
}

// RejectRequest cancels an intent.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// CompletePlannedRequest fulfils part or all of an intent.
type CompletePlannedRequest struct {
	ActualQuantity types.Quantity `json:"actualQuantity"`
	ReceivedAt     *time.Time     `json:"receivedAt"`
	UnitPrice      *types.Money   `json:"unitPrice"`
	Identity       *string        `json:"identity"`
	ExpirationDate *time.Time     `json:"expirationDate"`
	PrintLabel     bool           `json:"printLabel"`
	Note           *string        `json:"note"`
}

// ToDomain converts the request to the workflow input.
func (r CompletePlannedRequest) ToDomain() planned.CompleteRequest {
	return planned.CompleteRequest{
		ActualQuantity: r.ActualQuantity,
		ReceivedAt:     r.ReceivedAt,
		UnitPrice:      r.UnitPrice,
		Identity:       r.Identity,
		ExpirationDate: r.ExpirationDate,
		PrintLabel:     r.PrintLabel,
		Note:           r.Note,
	}
}
