// Package planned provides the Planned-Transaction Workflow: recorded intents
// to receive or issue stock, approved or rejected, and fulfilled in one or
// more slices.
package planned

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
)

// Type is the direction of a planned transaction.
type Type string

const (
	TypeReceive Type = "RECEIVE"
	TypeIssue   Type = "ISSUE"
)

// IsValid reports whether t is a known type.
func (t Type) IsValid() bool {
	return t == TypeReceive || t == TypeIssue
}

// NumberPrefix returns the document-number prefix for t.
func (t Type) NumberPrefix() string {
	if t == TypeIssue {
		return "PI"
	}
	return "PR"
}

// Status is the workflow state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Action names a workflow transition.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionComplete   Action = "complete"
	ActionCompensate Action = "compensate"
	ActionDelete     Action = "delete"
)

// PlannedTransaction is an intent awaiting execution.
//
// Quantity is what remains to fulfil. PlannedQuantity is the total intent;
// when a completion covers less than PlannedQuantity the fulfilled slice is
// also recorded as a separate COMPLETED child referencing the parent.
type PlannedTransaction struct {
	ID              id.ID          `db:"id" json:"id"`
	Number          string         `db:"number" json:"number"`
	TransactionType Type           `db:"transaction_type" json:"transactionType"`
	ItemID          id.ID          `db:"item_id" json:"itemId"`
	LocationID      id.ID          `db:"location_id" json:"locationId"`
	Quantity        types.Quantity `db:"quantity" json:"quantity"`
	PlannedQuantity types.Quantity `db:"planned_quantity" json:"plannedQuantity"`
	Unit            string         `db:"unit" json:"unit"`
	UnitPrice       types.Money    `db:"unit_price" json:"unitPrice"`
	ScheduledDate   time.Time      `db:"scheduled_date" json:"scheduledDate"`
	Status          Status         `db:"status" json:"status"`

	RequestedBy     string     `db:"requested_by" json:"requestedBy"`
	ApprovedBy      *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovalComment *string    `db:"approval_comment" json:"approvalComment,omitempty"`
	CompletedBy     *string    `db:"completed_by" json:"completedBy,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	SupplierName    *string `db:"supplier_name" json:"supplierName,omitempty"`
	CustomerName    *string `db:"customer_name" json:"customerName,omitempty"`
	ShippingAddress *string `db:"shipping_address" json:"shippingAddress,omitempty"`
	Notes           *string `db:"notes" json:"notes,omitempty"`
	RejectionReason *string `db:"rejection_reason" json:"rejectionReason,omitempty"`

	// ParentPlannedID links a fulfilled slice to the intent it came from.
	ParentPlannedID *id.ID `db:"parent_planned_id" json:"parentPlannedId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Meta carries the auxiliary fields of a planned transaction.
type Meta struct {
	SupplierName    *string
	CustomerName    *string
	ShippingAddress *string
	Notes           *string
	UnitPrice       *types.Money
}

// Apply copies non-nil meta fields onto p.
func (m Meta) Apply(p *PlannedTransaction) {
	if m.SupplierName != nil {
		p.SupplierName = m.SupplierName
	}
	if m.CustomerName != nil {
		p.CustomerName = m.CustomerName
	}
	if m.ShippingAddress != nil {
		p.ShippingAddress = m.ShippingAddress
	}
	if m.Notes != nil {
		p.Notes = m.Notes
	}
	if m.UnitPrice != nil {
		p.UnitPrice = *m.UnitPrice
	}
}

// Validate checks the fields of an editable record.
func (p *PlannedTransaction) Validate(_ context.Context) error {
	if !p.TransactionType.IsValid() {
		return apperror.NewValidation("invalid transaction type").
			WithDetail("field", "transactionType").
			WithDetail("value", string(p.TransactionType))
	}
	if id.IsNil(p.ItemID) {
		return apperror.NewValidation("item is required").WithDetail("field", "itemId")
	}
	if id.IsNil(p.LocationID) {
		return apperror.NewValidation("location is required").WithDetail("field", "locationId")
	}
	if !p.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", p.Quantity.String())
	}
	if p.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	if p.ScheduledDate.IsZero() {
		return apperror.NewValidation("scheduled date is required").
			WithDetail("field", "scheduledDate")
	}
	return nil
}

// Clone returns a deep copy.
func (p *PlannedTransaction) Clone() *PlannedTransaction {
	c := *p
	c.ApprovedBy = cloneString(p.ApprovedBy)
	c.ApprovalComment = cloneString(p.ApprovalComment)
	c.CompletedBy = cloneString(p.CompletedBy)
	c.SupplierName = cloneString(p.SupplierName)
	c.CustomerName = cloneString(p.CustomerName)
	c.ShippingAddress = cloneString(p.ShippingAddress)
	c.Notes = cloneString(p.Notes)
	c.RejectionReason = cloneString(p.RejectionReason)
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		c.ApprovedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	if p.ParentPlannedID != nil {
		v := *p.ParentPlannedID
		c.ParentPlannedID = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// --- State machine ---

// CanUpdate allows edits only while PENDING.
func (p *PlannedTransaction) CanUpdate() error {
	if p.Status != StatusPending {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionUpdate))
	}
	return nil
}

// CanApprove allows approval only from PENDING.
func (p *PlannedTransaction) CanApprove() error {
	if p.Status != StatusPending {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionApprove))
	}
	return nil
}

// CanReject allows rejection of any non-terminal record.
func (p *PlannedTransaction) CanReject() error {
	if p.Status.IsTerminal() {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionReject))
	}
	return nil
}

// CanComplete allows completion from PENDING or APPROVED.
func (p *PlannedTransaction) CanComplete() error {
	if p.Status.IsTerminal() {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionComplete))
	}
	return nil
}

// CanDelete forbids deleting an approved commitment or a fulfilled slice.
func (p *PlannedTransaction) CanDelete() error {
	if p.ParentPlannedID != nil {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionDelete)).
			WithDetail("hint", "fulfilled slices are part of the parent's history")
	}
	if p.Status == StatusApproved {
		return apperror.NewInvalidStateTransition("planned transaction", p.ID, string(p.Status), string(ActionDelete)).
			WithDetail("hint", "reject or complete the approved transaction first")
	}
	return nil
}

// IsSliced reports whether completing amount records a separate child slice.
func (p *PlannedTransaction) IsSliced(amount types.Quantity) bool {
	return amount.LessThan(p.PlannedQuantity)
}

// NewSlice builds the immutable COMPLETED child for a fulfilled slice.
func (p *PlannedTransaction) NewSlice(amount types.Quantity, number, completedBy string, at time.Time, note *string) *PlannedTransaction {
	parentID := p.ID
	child := p.Clone()
	child.ID = id.New()
	child.Number = number
	child.Quantity = amount
	child.PlannedQuantity = amount
	child.Status = StatusCompleted
	child.CompletedBy = &completedBy
	child.CompletedAt = &at
	child.RejectionReason = nil
	child.ParentPlannedID = &parentID
	child.CreatedAt = at
	child.UpdatedAt = at
	if note != nil {
		child.Notes = note
	}
	return child
}

// SliceNumber derives a child number from the parent number.
func SliceNumber(parentNumber string, seq int) string {
	return fmt.Sprintf("%s/%d", parentNumber, seq)
}

// SliceSeq extracts the sequence from a slice number issued under
// parentNumber.
func SliceSeq(parentNumber, number string) (int, bool) {
	suffix, ok := strings.CutPrefix(number, parentNumber+"/")
	if !ok {
		return 0, false
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

// ListFilter selects planned transactions.
type ListFilter struct {
	Type            *Type
	Statuses        []Status
	ItemID          *id.ID
	LocationID      *id.ID
	ParentPlannedID *id.ID

	// ScheduledFrom is inclusive, ScheduledTo is exclusive.
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time

	// OnlyRoots excludes fulfilled slices.
	OnlyRoots bool

	domain.Page
}
