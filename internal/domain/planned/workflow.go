package planned

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lotledger/internal/core/apperror"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	corenumerator "lotledger/internal/core/numerator"
	"lotledger/internal/core/tx"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/allocation"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/inventory"
	"lotledger/internal/domain/lot"
	"lotledger/pkg/logger"
)

// Executor performs the stock side of a completion.
type Executor interface {
	Receive(ctx context.Context, req inventory.ReceiveRequest) (*lot.Lot, error)
	Issue(ctx context.Context, req inventory.IssueRequest) (*allocation.Result, error)
}

// Workflow drives planned transactions through their states.
type Workflow struct {
	txManager tx.Manager
	repo      Repository
	executor  Executor
	items     catalog.ItemCatalog
	locations catalog.LocationRegistry
	actors    catalog.ActorResolver
	numerator corenumerator.Generator
	auditor   Auditor
	now       func() time.Time
}

// NewWorkflow creates a workflow service.
func NewWorkflow(
	txManager tx.Manager,
	repo Repository,
	executor Executor,
	items catalog.ItemCatalog,
	locations catalog.LocationRegistry,
	actors catalog.ActorResolver,
	numerator corenumerator.Generator,
	auditor Auditor,
) *Workflow {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &Workflow{
		txManager: txManager,
		repo:      repo,
		executor:  executor,
		items:     items,
		locations: locations,
		actors:    actors,
		numerator: numerator,
		auditor:   auditor,
		now:       time.Now,
	}
}

// WithClock replaces the clock (tests).
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// CreateRequest describes a new intent.
type CreateRequest struct {
	Type          Type
	ItemID        id.ID
	LocationID    id.ID
	Quantity      types.Quantity
	Unit          string
	ScheduledDate time.Time
	Meta          Meta
}

// Create records a PENDING intent.
func (w *Workflow) Create(ctx context.Context, req CreateRequest) (*PlannedTransaction, error) {
	now := w.now().UTC()
	p := &PlannedTransaction{
		ID:              id.New(),
		TransactionType: req.Type,
		ItemID:          req.ItemID,
		LocationID:      req.LocationID,
		Quantity:        req.Quantity,
		PlannedQuantity: req.Quantity,
		Unit:            req.Unit,
		UnitPrice:       types.Zero(),
		ScheduledDate:   req.ScheduledDate,
		Status:          StatusPending,
		RequestedBy:     w.actorID(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	req.Meta.Apply(p)

	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	if err := w.resolveReferences(ctx, p); err != nil {
		return nil, err
	}

	number, err := w.numerator.GetNextNumber(ctx, corenumerator.DefaultConfig(p.TransactionType.NumberPrefix()), nil, now)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	p.Number = number

	err = w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := w.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create planned transaction: %w", err)
		}
		return w.audit(ctx, ActionCreate, p.ID, nil, p, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "planned transaction created",
		"id", p.ID,
		"number", p.Number,
		"type", p.TransactionType,
		"quantity", p.Quantity.String(),
	)
	return p, nil
}

// UpdateRequest carries the fields to change. Nil fields are kept.
type UpdateRequest struct {
	ItemID        *id.ID
	LocationID    *id.ID
	Quantity      *types.Quantity
	Unit          *string
	ScheduledDate *time.Time
	Meta          Meta
}

// Update edits a PENDING intent.
func (w *Workflow) Update(ctx context.Context, plannedID id.ID, req UpdateRequest) (*PlannedTransaction, error) {
	var updated *PlannedTransaction
	err := w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := w.repo.GetByID(ctx, plannedID, domain.LockForUpdate)
		if err != nil {
			return err
		}
		if err := current.CanUpdate(); err != nil {
			return err
		}

		next := current.Clone()
		if req.ItemID != nil {
			next.ItemID = *req.ItemID
		}
		if req.LocationID != nil {
			next.LocationID = *req.LocationID
		}
		if req.Quantity != nil {
			// Fulfilled slices stay counted in the planned total.
			next.PlannedQuantity = current.PlannedQuantity.Sub(current.Quantity).Add(*req.Quantity)
			next.Quantity = *req.Quantity
		}
		if req.Unit != nil {
			next.Unit = *req.Unit
		}
		if req.ScheduledDate != nil {
			next.ScheduledDate = *req.ScheduledDate
		}
		req.Meta.Apply(next)
		next.UpdatedAt = w.now().UTC()

		if err := next.Validate(ctx); err != nil {
			return err
		}
		if err := w.resolveReferences(ctx, next); err != nil {
			return err
		}
		if err := w.repo.Update(ctx, next); err != nil {
			return fmt.Errorf("update planned transaction: %w", err)
		}

		updated = next
		return w.audit(ctx, ActionUpdate, plannedID, current, next, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "planned transaction updated", "id", plannedID, "number", updated.Number)
	return updated, nil
}

// Approve records approval of a PENDING intent. Approval is metadata only:
// it reserves no stock.
func (w *Workflow) Approve(ctx context.Context, plannedID id.ID, approverID string, comment *string) (*PlannedTransaction, error) {
	if approverID == "" {
		approverID = w.actorID(ctx)
	}

	return w.transition(ctx, plannedID, ActionApprove, func(p *PlannedTransaction, now time.Time) error {
		if err := p.CanApprove(); err != nil {
			return err
		}
		p.Status = StatusApproved
		p.ApprovedBy = &approverID
		p.ApprovedAt = &now
		p.ApprovalComment = comment
		return nil
	})
}

// Reject cancels a non-terminal intent. The reason is mandatory.
func (w *Workflow) Reject(ctx context.Context, plannedID id.ID, reason string) (*PlannedTransaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.NewValidation("rejection reason is required").
			WithDetail("field", "reason")
	}

	return w.transition(ctx, plannedID, ActionReject, func(p *PlannedTransaction, _ time.Time) error {
		if err := p.CanReject(); err != nil {
			return err
		}
		p.Status = StatusCancelled
		p.RejectionReason = &reason
		return nil
	})
}

// Delete removes an intent unless it is APPROVED.
func (w *Workflow) Delete(ctx context.Context, plannedID id.ID) error {
	err := w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := w.repo.GetByID(ctx, plannedID, domain.LockForUpdate)
		if err != nil {
			return err
		}
		if err := current.CanDelete(); err != nil {
			return err
		}
		if err := w.repo.Delete(ctx, plannedID); err != nil {
			return fmt.Errorf("delete planned transaction: %w", err)
		}
		return w.audit(ctx, ActionDelete, plannedID, current, nil, nil)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "planned transaction deleted", "id", plannedID)
	return nil
}

// Get returns one intent.
func (w *Workflow) Get(ctx context.Context, plannedID id.ID) (*PlannedTransaction, error) {
	return w.repo.GetByID(ctx, plannedID, domain.LockNone)
}

// List returns intents matching the filter.
func (w *Workflow) List(ctx context.Context, filter ListFilter) (domain.ListResult[*PlannedTransaction], error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return domain.ListResult[*PlannedTransaction]{}, apperror.NewValidation("invalid transaction type").
			WithDetail("field", "type")
	}
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return domain.ListResult[*PlannedTransaction]{}, apperror.NewValidation("invalid status").
				WithDetail("field", "status").
				WithDetail("value", string(st))
		}
	}
	filter.Page = filter.Page.Normalize()
	return w.repo.List(ctx, filter)
}

// transition applies mutate to a locked record and persists it with an audit entry.
func (w *Workflow) transition(
	ctx context.Context,
	plannedID id.ID,
	action Action,
	mutate func(p *PlannedTransaction, now time.Time) error,
) (*PlannedTransaction, error) {
	var updated *PlannedTransaction
	err := w.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := w.repo.GetByID(ctx, plannedID, domain.LockForUpdate)
		if err != nil {
			return err
		}

		now := w.now().UTC()
		next := current.Clone()
		if err := mutate(next, now); err != nil {
			return err
		}
		next.UpdatedAt = now

		if err := w.repo.Update(ctx, next); err != nil {
			return fmt.Errorf("%s planned transaction: %w", action, err)
		}
		updated = next
		return w.audit(ctx, action, plannedID, current, next, nil)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "planned transaction transitioned",
		"action", action,
		"id", plannedID,
		"number", updated.Number,
		"status", updated.Status,
	)
	return updated, nil
}

// resolveReferences checks item, location and unit against the catalog.
func (w *Workflow) resolveReferences(ctx context.Context, p *PlannedTransaction) error {
	item, err := w.items.GetItem(ctx, p.ItemID)
	if err != nil {
		return err
	}
	if _, err := w.locations.GetLocation(ctx, p.LocationID); err != nil {
		return err
	}
	unit, err := item.CheckUnit(p.Unit)
	if err != nil {
		return err
	}
	p.Unit = unit
	return nil
}

func (w *Workflow) actorID(ctx context.Context) string {
	if userID := appctx.GetUserID(ctx); userID != "" {
		return userID
	}
	return catalog.DefaultActorName
}

func (w *Workflow) audit(ctx context.Context, action Action, plannedID id.ID, before, after *PlannedTransaction, details map[string]any) error {
	actorID := w.actorID(ctx)
	err := w.auditor.Record(ctx, AuditEntry{
		PlannedID: plannedID,
		Action:    action,
		ActorID:   actorID,
		ActorName: catalog.ResolveActorName(ctx, w.actors, actorID),
		Before:    before,
		After:     after,
		Details:   details,
	})
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}
