package planned

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/saga"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// CompleteRequest describes what was actually received or issued.
type CompleteRequest struct {
	ActualQuantity types.Quantity

	// Receive-only execution details.
	ReceivedAt     *time.Time
	UnitPrice      *types.Money
	Identity       *string
	ExpirationDate *time.Time
	PrintLabel     bool

	Note *string
}

// CompletionResult is the outcome of a committed completion.
type CompletionResult struct {
	Planned *PlannedTransaction `json:"planned"`

	// CompletedPartial is the fulfilled slice, nil when the whole intent was
	// completed in one go.
	CompletedPartial *PlannedTransaction `json:"completedPartial,omitempty"`

	// Lot is set for RECEIVE, Allocation for ISSUE.
	Lot        *lot.Lot           `json:"lot,omitempty"`
	Allocation *allocation.Result `json:"allocation,omitempty"`
}

// Complete fulfils actualQuantity of an intent in two phases.
//
// Phase A is a short transaction holding only the planned row: it subtracts
// the quantity with a guarded update and records the fulfilled slice.
// Phase B performs the receive or issue in its own transaction. If phase B
// fails, phase A is reversed in a new transaction and phase B's error is
// returned. Complete must not run inside a caller transaction.
func (w *Workflow) Complete(ctx context.Context, plannedID id.ID, req CompleteRequest) (*CompletionResult, error) {
	current, err := w.repo.GetByID(ctx, plannedID, domain.LockNone)
	if err != nil {
		return nil, err
	}
	if err := current.CanComplete(); err != nil {
		return nil, err
	}
	if err := validateActual(current, req.ActualQuantity); err != nil {
		return nil, err
	}

	actorID := w.actorID(ctx)
	c := &completion{
		workflow: w,
		id:       plannedID,
		req:      req,
		actorID:  actorID,
	}

	out := saga.Run(ctx, "planned.complete",
		saga.Step{
			Name:       "reserve",
			Action:     c.reserve,
			Compensate: c.release,
		},
		saga.Step{
			Name:   "execute",
			Action: c.execute,
		},
	)

	if !out.IsCommitted() {
		return nil, w.handleFailedCompletion(ctx, c, out)
	}

	logger.Info(ctx, "planned transaction completed",
		"id", plannedID,
		"number", c.reserved.Number,
		"quantity", req.ActualQuantity.String(),
		"remaining", c.reserved.Quantity.String(),
		"status", c.reserved.Status,
		"sliced", c.slice != nil,
	)

	return &CompletionResult{
		Planned:          c.reserved,
		CompletedPartial: c.slice,
		Lot:              c.lot,
		Allocation:       c.allocation,
	}, nil
}

func validateActual(p *PlannedTransaction, actual types.Quantity) error {
	if !actual.IsPositive() {
		return apperror.NewValidation("actual quantity must be positive").
			WithDetail("field", "actualQuantity").
			WithDetail("value", actual.String())
	}
	if actual.GreaterThan(p.Quantity) {
		return apperror.NewValidation("actual quantity exceeds remaining quantity").
			WithDetail("field", "actualQuantity").
			WithDetail("value", actual.String()).
			WithDetail("remaining", p.Quantity.String())
	}
	return nil
}

// completion carries state between the saga steps.
type completion struct {
	workflow *Workflow
	id       id.ID
	req      CompleteRequest
	actorID  string

	before     *PlannedTransaction
	reserved   *PlannedTransaction
	slice      *PlannedTransaction
	lot        *lot.Lot
	allocation *allocation.Result
}

// reserve is phase A.
func (c *completion) reserve(ctx context.Context) error {
	w := c.workflow
	return w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		before, err := w.repo.GetByID(ctx, c.id, domain.LockForUpdate)
		if err != nil {
			return err
		}
		if err := before.CanComplete(); err != nil {
			return err
		}
		if before.Quantity.LessThan(c.req.ActualQuantity) {
			return apperror.NewConcurrentModification("planned transaction", c.id).
				WithDetail("remaining", before.Quantity.String()).
				WithDetail("requested", c.req.ActualQuantity.String())
		}

		now := w.now().UTC()
		reserved, err := w.repo.ReserveCompletion(ctx, c.id, c.req.ActualQuantity, c.actorID, now)
		if err != nil {
			return err
		}

		var slice *PlannedTransaction
		if before.IsSliced(c.req.ActualQuantity) {
			seq, err := w.repo.LastSliceSeq(ctx, before.Number)
			if err != nil {
				return fmt.Errorf("last slice number: %w", err)
			}
			slice = before.NewSlice(c.req.ActualQuantity, SliceNumber(before.Number, seq+1), c.actorID, now, c.req.Note)
			if err := w.repo.Create(ctx, slice); err != nil {
				return fmt.Errorf("create completed slice: %w", err)
			}
		}

		details := map[string]any{"actualQuantity": c.req.ActualQuantity.String()}
		if slice != nil {
			details["sliceId"] = slice.ID.String()
		}
		if err := w.audit(ctx, ActionComplete, c.id, before, reserved, details); err != nil {
			return err
		}

		c.before, c.reserved, c.slice = before, reserved, slice
		return nil
	})
}

// release undoes phase A.
func (c *completion) release(ctx context.Context) error {
	w := c.workflow
	return w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := w.repo.ReleaseCompletion(ctx, c.before, c.req.ActualQuantity); err != nil {
			return fmt.Errorf("release completion: %w", err)
		}
		if c.slice != nil {
			if err := w.repo.Delete(ctx, c.slice.ID); err != nil {
				return fmt.Errorf("delete completed slice: %w", err)
			}
		}
		return nil
	})
}

// execute is phase B.
func (c *completion) execute(ctx context.Context) error {
	p := c.reserved
	correlationID := p.ID
	if c.slice != nil {
		correlationID = c.slice.ID
	}
	note := c.req.Note
	if note == nil {
		n := fmt.Sprintf("planned %s", p.Number)
		note = &n
	}

	switch p.TransactionType {
	case TypeReceive:
		unitPrice := p.UnitPrice
		if c.req.UnitPrice != nil {
			unitPrice = *c.req.UnitPrice
		}
		receivedAt := time.Time{}
		if c.req.ReceivedAt != nil {
			receivedAt = *c.req.ReceivedAt
		}

		created, err := c.workflow.executor.Receive(ctx, inventory.ReceiveRequest{
			ItemID:         p.ItemID,
			LocationID:     p.LocationID,
			Quantity:       c.req.ActualQuantity,
			Unit:           p.Unit,
			ReceivedAt:     receivedAt,
			UnitPrice:      unitPrice,
			Identity:       c.req.Identity,
			ExpirationDate: c.req.ExpirationDate,
			Note:           note,
			CorrelationID:  &correlationID,
			PrintLabel:     c.req.PrintLabel,
		})
		if err != nil {
			return err
		}
		c.lot = created

	case TypeIssue:
		result, err := c.workflow.executor.Issue(ctx, inventory.IssueRequest{
			ItemID:        p.ItemID,
			LocationID:    p.LocationID,
			Quantity:      c.req.ActualQuantity,
			Unit:          p.Unit,
			Note:          note,
			CorrelationID: &correlationID,
		})
		if err != nil {
			return err
		}
		c.allocation = result

	default:
		return apperror.NewValidation("invalid transaction type").
			WithDetail("value", string(p.TransactionType))
	}
	return nil
}

// handleFailedCompletion logs and audits a failed completion and returns the
// error the caller should see.
func (w *Workflow) handleFailedCompletion(ctx context.Context, c *completion, out saga.Outcome) error {
	err := out.Error()

	if out.FailedStep == "reserve" {
		if apperror.IsExpected(err) {
			logger.Info(ctx, "planned completion rejected", "id", c.id, "reason", err.Error())
		}
		return err
	}

	if out.CompensationErr != nil {
		logger.Error(ctx, "planned completion compensation failed",
			"id", c.id,
			"quantity", c.req.ActualQuantity.String(),
			"error", err,
			"compensation_error", out.CompensationErr,
		)
		return err
	}

	logger.Warn(ctx, "planned completion compensated",
		"id", c.id,
		"quantity", c.req.ActualQuantity.String(),
		"error", err,
	)

	details := map[string]any{
		"actualQuantity": c.req.ActualQuantity.String(),
		"error":          err.Error(),
	}
	if c.slice != nil {
		details["sliceId"] = c.slice.ID.String()
	}
	if auditErr := w.audit(context.WithoutCancel(ctx), ActionCompensate, c.id, c.reserved, c.before, details); auditErr != nil {
		logger.Warn(ctx, "compensation audit failed", "id", c.id, "error", auditErr)
	}
	return err
}
