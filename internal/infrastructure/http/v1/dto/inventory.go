package dto

import (
	"time"

	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/inventory"
)

// ReceiveRequest creates a lot from an inbound delivery.
type ReceiveRequest struct {
	ItemID         id.ID          `json:"itemId"`
	LocationID     id.ID          `json:"locationId"`
	Quantity       types.Quantity `json:"quantity"`
	Unit           string         `json:"unit"`
	ReceivedAt     time.Time      `json:"receivedAt"`
	UnitPrice      types.Money    `json:"unitPrice"`
	Identity       *string        `json:"identity"`
	ExpirationDate *time.Time     `json:"expirationDate"`
	Note           *string        `json:"note"`
	PrintLabel     bool           `json:"printLabel"`
}

// ToDomain converts the request to the service input.
func (r ReceiveRequest) ToDomain() inventory.ReceiveRequest {
	return inventory.ReceiveRequest{
		ItemID:         r.ItemID,
		LocationID:     r.LocationID,
		Quantity:       r.Quantity,
		Unit:           r.Unit,
		ReceivedAt:     r.ReceivedAt,
		UnitPrice:      r.UnitPrice,
		Identity:       r.Identity,
		ExpirationDate: r.ExpirationDate,
		Note:           r.Note,
		PrintLabel:     r.PrintLabel,
	}
}

// IssueRequest consumes stock FIFO.
type IssueRequest struct {
	ItemID     id.ID          `json:"itemId"`
	LocationID id.ID          `json:"locationId"`
	Quantity   types.Quantity `json:"quantity"`
	Unit       string         `json:"unit"`
	Note       *string        `json:"note"`
}

// ToDomain converts the request to the service input.
func (r IssueRequest) ToDomain() inventory.IssueRequest {
	return inventory.IssueRequest{
		ItemID:     r.ItemID,
		LocationID: r.LocationID,
		Quantity:   r.Quantity,
		Unit:       r.Unit,
		Note:       r.Note,
	}
}

// TransferRequest moves stock between locations.
type TransferRequest struct {
	ItemID             id.ID          `json:"itemId"`
	SourceLocationID   id.ID          `json:"sourceLocationId"`
	DestLocationID     id.ID          `json:"destLocationId"`
	Quantity           types.Quantity `json:"quantity"`
	Unit               string         `json:"unit"`
	PreserveProvenance bool           `json:"preserveProvenance"`
	Note               *string        `json:"note"`
}

// ToDomain converts the request to the service input.
func (r TransferRequest) ToDomain() inventory.TransferRequest {
	return inventory.TransferRequest{
		ItemID:             r.ItemID,
		SourceLocationID:   r.SourceLocationID,
		DestLocationID:     r.DestLocationID,
		Quantity:           r.Quantity,
		Unit:               r.Unit,
		PreserveProvenance: r.PreserveProvenance,
		Note:               r.Note,
	}
}
