package inventory

import (
	"context"
	"fmt"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// TransferRequest moves stock between two locations.
type TransferRequest struct {
	ItemID           id.ID
	SourceLocationID id.ID
	DestLocationID   id.ID
	Quantity         types.Quantity
	Unit             string

	// PreserveProvenance carries the earliest first-receipt time and the
	// earliest expiration of the consumed lots to the new lot. Otherwise both
	// restart from now.
	PreserveProvenance bool

	Note *string
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	MovedQuantity  types.Quantity     `json:"movedQuantity"`
	NewLotIdentity string             `json:"newLotIdentity"`
	NewLot         *lot.Lot           `json:"newLot"`
	Traces         []allocation.Trace `json:"traces"`
	CorrelationID  id.ID              `json:"correlationId"`
}

// Transfer consumes FIFO at the source and creates one lot at the destination.
//
// The new lot always gets a fresh identity. TRANSFER_OUT is recorded per
// consumed lot and TRANSFER_IN once for the new lot; all movements share a
// correlation id. Either every step commits or none does.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.SourceLocationID == req.DestLocationID {
		return nil, apperror.NewInvalidTransfer("source and destination locations are the same").
			WithDetail("locationId", req.SourceLocationID)
	}
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", req.Quantity.String())
	}

	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	unit, err := item.CheckUnit(req.Unit)
	if err != nil {
		return nil, err
	}
	if _, err := s.locations.GetLocation(ctx, req.SourceLocationID); err != nil {
		return nil, err
	}
	dest, err := s.locations.GetLocation(ctx, req.DestLocationID)
	if err != nil {
		return nil, err
	}
	if err := dest.CanHoldStock(); err != nil {
		return nil, err
	}

	correlationID := id.New()
	result := &TransferResult{CorrelationID: correlationID}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		alloc, err := s.allocator.Allocate(ctx, req.ItemID, req.SourceLocationID, req.Quantity)
		if err != nil {
			return err
		}

		from, to := req.SourceLocationID, req.DestLocationID
		out := make([]*ledger.Movement, 0, len(alloc.Traces))
		for _, tr := range alloc.Traces {
			out = append(out, &ledger.Movement{
				Type:           ledger.TypeTransferOut,
				ItemID:         req.ItemID,
				LotID:          tr.LotID,
				LotIdentity:    tr.LotIdentity,
				Quantity:       tr.AmountTaken,
				Unit:           tr.Unit,
				FromLocationID: &from,
				ToLocationID:   &to,
				Note:           req.Note,
				CorrelationID:  &correlationID,
			})
		}
		if err := s.ledger.RecordBatch(ctx, out); err != nil {
			return fmt.Errorf("record transfer out: %w", err)
		}

		now := s.lots.Now()
		newLot := &lot.Lot{
			ItemID:            req.ItemID,
			LocationID:        req.DestLocationID,
			UnitPrice:         alloc.WeightedUnitPrice(),
			RemainingQuantity: alloc.AllocatedQuantity,
			Unit:              unit,
			ReceivedAt:        now,
		}
		if req.PreserveProvenance {
			newLot.FirstReceivedAt = alloc.EarliestFirstReceived()
			newLot.ExpirationDate = alloc.EarliestExpiration()
		} else {
			newLot.FirstReceivedAt = now
			newLot.ExpirationDate = item.ExpirationFrom(now)
		}

		created, err := s.lots.Create(ctx, newLot)
		if err != nil {
			return fmt.Errorf("create destination lot: %w", err)
		}

		_, err = s.ledger.Record(ctx, &ledger.Movement{
			Type:           ledger.TypeTransferIn,
			ItemID:         req.ItemID,
			LotID:          created.ID,
			LotIdentity:    created.IdentityString(),
			Quantity:       created.RemainingQuantity,
			Unit:           created.Unit,
			FromLocationID: &from,
			ToLocationID:   &to,
			Note:           req.Note,
			CorrelationID:  &correlationID,
			OccurredAt:     now,
		})
		if err != nil {
			return fmt.Errorf("record transfer in: %w", err)
		}

		result.MovedQuantity = alloc.AllocatedQuantity
		result.NewLot = created
		result.NewLotIdentity = created.IdentityString()
		result.Traces = alloc.Traces
		return nil
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			logger.Info(ctx, "transfer rejected: insufficient stock",
				"item_id", req.ItemID,
				"source_location_id", req.SourceLocationID,
				"requested", req.Quantity.String(),
			)
		}
		return nil, err
	}

	logger.Info(ctx, "stock transferred",
		"item_id", req.ItemID,
		"source_location_id", req.SourceLocationID,
		"dest_location_id", req.DestLocationID,
		"quantity", result.MovedQuantity.String(),
		"new_lot_identity", result.NewLotIdentity,
		"correlation_id", correlationID,
		"preserve_provenance", req.PreserveProvenance,
	)
	return result, nil
}
