// Package domain provides types shared by the domain packages.
package domain

const (
	// DefaultLimit is applied when a list request carries no limit.
	DefaultLimit = 50
	// MaxLimit caps a single page.
	MaxLimit = 500
)

// LockMode is the lock intent of a repository read.
type LockMode int

const (
	// LockNone reads without locking.
	LockNone LockMode = iota
	// LockForUpdate takes a row-level exclusive lock held until the
	// surrounding transaction ends.
	LockForUpdate
)

func (m LockMode) String() string {
	if m == LockForUpdate {
		return "FOR UPDATE"
	}
	return "NONE"
}

// Page is an offset/limit window.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps limit and offset into the allowed range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResult builds a result for a normalized page.
func NewListResult[T any](items []T, total int64, page Page) ListResult[T] {
	if items == nil {
		items = make([]T, 0)
	}
	return ListResult[T]{
		Items:      items,
		TotalCount: total,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
}
