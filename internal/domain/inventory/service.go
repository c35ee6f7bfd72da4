// Package inventory provides the direct stock operations: receive, issue and
// the transfer orchestrator. Each operation is one transaction spanning the
// lot store and the movement ledger.
package inventory

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/tx"
	"lotledger/internal/core/types"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// Service executes receive, issue and transfer.
type Service struct {
	txManager tx.Manager
	lots      *lot.Store
	ledger    *ledger.Service
	allocator *allocation.Allocator
	items     catalog.ItemCatalog
	locations catalog.LocationRegistry
	labels    catalog.LabelSink
}

// NewService creates an inventory service.
func NewService(
	txManager tx.Manager,
	lots *lot.Store,
	ledgerService *ledger.Service,
	allocator *allocation.Allocator,
	items catalog.ItemCatalog,
	locations catalog.LocationRegistry,
	labels catalog.LabelSink,
) *Service {
	if labels == nil {
		labels = catalog.NopLabelSink{}
	}
	return &Service{
		txManager: txManager,
		lots:      lots,
		ledger:    ledgerService,
		allocator: allocator,
		items:     items,
		locations: locations,
		labels:    labels,
	}
}

// ReceiveRequest creates a lot from incoming stock.
type ReceiveRequest struct {
	ItemID     id.ID
	LocationID id.ID
	Quantity   types.Quantity
	Unit       string
	ReceivedAt time.Time
	UnitPrice  types.Money

	// Identity is a pre-printed barcode. Generated when nil.
	Identity *string
	// ExpirationDate overrides the shelf-life derived expiration.
	ExpirationDate *time.Time

	Note          *string
	CorrelationID *id.ID
	PrintLabel    bool
}

// Receive creates a lot and its RECEIVE movement.
func (s *Service) Receive(ctx context.Context, req ReceiveRequest) (*lot.Lot, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", req.Quantity.String())
	}

	var created *lot.Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l := &lot.Lot{
			ItemID:            req.ItemID,
			LocationID:        req.LocationID,
			Identity:          req.Identity,
			UnitPrice:         req.UnitPrice,
			RemainingQuantity: req.Quantity,
			Unit:              req.Unit,
			ReceivedAt:        req.ReceivedAt,
		}
		if req.ExpirationDate != nil {
			l.ExpirationDate = *req.ExpirationDate
		}

		var err error
		created, err = s.lots.Create(ctx, l)
		if err != nil {
			return err
		}

		locationID := created.LocationID
		_, err = s.ledger.Record(ctx, &ledger.Movement{
			Type:          ledger.TypeReceive,
			ItemID:        created.ItemID,
			LotID:         created.ID,
			LotIdentity:   created.IdentityString(),
			Quantity:      created.RemainingQuantity,
			Unit:          created.Unit,
			ToLocationID:  &locationID,
			Note:          req.Note,
			CorrelationID: req.CorrelationID,
			OccurredAt:    created.ReceivedAt,
		})
		if err != nil {
			return fmt.Errorf("record receive: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot received",
		"lot_id", created.ID,
		"identity", created.IdentityString(),
		"item_id", created.ItemID,
		"location_id", created.LocationID,
		"quantity", created.RemainingQuantity.String(),
	)

	if req.PrintLabel {
		s.requestLabel(ctx, created)
	}
	return created, nil
}

// IssueRequest consumes stock FIFO.
type IssueRequest struct {
	ItemID        id.ID
	LocationID    id.ID
	Quantity      types.Quantity
	Unit          string
	Note          *string
	CorrelationID *id.ID
}

// Issue allocates FIFO and records one ISSUE movement per lot touched.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*allocation.Result, error) {
	item, err := s.items.GetItem(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.locations.GetLocation(ctx, req.LocationID); err != nil {
		return nil, err
	}
	if _, err := item.CheckUnit(req.Unit); err != nil {
		return nil, err
	}

	var result *allocation.Result
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.allocator.Allocate(ctx, req.ItemID, req.LocationID, req.Quantity)
		if err != nil {
			return err
		}

		locationID := req.LocationID
		movements := make([]*ledger.Movement, 0, len(result.Traces))
		for _, tr := range result.Traces {
			movements = append(movements, &ledger.Movement{
				Type:           ledger.TypeIssue,
				ItemID:         req.ItemID,
				LotID:          tr.LotID,
				LotIdentity:    tr.LotIdentity,
				Quantity:       tr.AmountTaken,
				Unit:           tr.Unit,
				FromLocationID: &locationID,
				Note:           req.Note,
				CorrelationID:  req.CorrelationID,
			})
		}
		if err := s.ledger.RecordBatch(ctx, movements); err != nil {
			return fmt.Errorf("record issue: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperror.IsInsufficientStock(err) {
			logger.Info(ctx, "issue rejected: insufficient stock",
				"item_id", req.ItemID,
				"location_id", req.LocationID,
				"requested", req.Quantity.String(),
			)
		}
		return nil, err
	}

	logger.Info(ctx, "stock issued",
		"item_id", req.ItemID,
		"location_id", req.LocationID,
		"quantity", result.AllocatedQuantity.String(),
		"lots", len(result.Traces),
	)
	return result, nil
}

// Available sums consumable stock of an item at a location.
func (s *Service) Available(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return types.Zero(), err
	}
	if _, err := s.locations.GetLocation(ctx, locationID); err != nil {
		return types.Zero(), err
	}

	total := types.Zero()
	read := func(ctx context.Context) error {
		var err error
		total, err = s.lots.Available(ctx, itemID, locationID)
		return err
	}
	var err error
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		err = ro.ReadOnly(ctx, read)
	} else {
		err = read(ctx)
	}
	if err != nil {
		return types.Zero(), err
	}
	return total, nil
}

// requestLabel hands a lot to the printing pipeline. Failures are logged only.
func (s *Service) requestLabel(ctx context.Context, l *lot.Lot) {
	itemName := ""
	if item, err := s.items.GetItem(ctx, l.ItemID); err == nil {
		itemName = item.Name
	}

	err := s.labels.RequestLabel(ctx, catalog.LabelRequest{
		LotID:          l.ID,
		Identity:       l.IdentityString(),
		ItemName:       itemName,
		Quantity:       l.RemainingQuantity,
		Unit:           l.Unit,
		ExpirationDate: l.ExpirationDate,
		LocationID:     l.LocationID,
		RequestedAt:    s.lots.Now(),
	})
	if err != nil {
		logger.Warn(ctx, "label request failed", "lot_id", l.ID, "error", err)
	}
}
