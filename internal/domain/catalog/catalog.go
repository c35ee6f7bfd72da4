// Package catalog defines the read-only collaborators the ledger consumes:
// the item catalog, the location registry, actor resolution and the label sink.
package catalog

import (
	"context"
	"strings"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
)

// DefaultActorName attributes work that has no resolvable actor.
const DefaultActorName = "system"

// Item is a catalog entry referenced by lots and movements.
type Item struct {
	ID            id.ID     `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	ShelfLifeDays int       `db:"shelf_life_days" json:"shelfLifeDays"`
	DefaultUnit   string    `db:"default_unit" json:"defaultUnit"`
	Category      string    `db:"category" json:"category"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ExpirationFrom returns the expiration date of stock received at t.
func (i *Item) ExpirationFrom(t time.Time) time.Time {
	return t.AddDate(0, 0, i.ShelfLifeDays)
}

// CheckUnit rejects quantities expressed in a unit other than the item's.
// Empty unit means the item's default unit.
func (i *Item) CheckUnit(unit string) (string, error) {
	if unit == "" || strings.EqualFold(unit, i.DefaultUnit) {
		return i.DefaultUnit, nil
	}
	return "", apperror.NewValidation("unit does not match item unit").
		WithDetail("field", "unit").
		WithDetail("itemUnit", i.DefaultUnit).
		WithDetail("value", unit)
}

// LocationType classifies a location.
type LocationType string

const (
	LocationWarehouse  LocationType = "warehouse"
	LocationProduction LocationType = "production"
	LocationStore      LocationType = "store"
	LocationTransit    LocationType = "transit"
)

// Location is a place stock can be held.
type Location struct {
	ID        id.ID        `db:"id" json:"id"`
	Code      string       `db:"code" json:"code"`
	Name      string       `db:"name" json:"name"`
	Type      LocationType `db:"type" json:"type"`
	IsActive  bool         `db:"is_active" json:"isActive"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

// CanHoldStock reports whether new lots may be created at the location.
func (l *Location) CanHoldStock() error {
	if !l.IsActive {
		return apperror.NewValidation("location is inactive").
			WithDetail("locationId", l.ID)
	}
	return nil
}

// ItemCatalog resolves items. Returns apperror NOT_FOUND for unknown ids.
type ItemCatalog interface {
	GetItem(ctx context.Context, itemID id.ID) (*Item, error)
}

// LocationRegistry resolves locations. Returns apperror NOT_FOUND for unknown ids.
type LocationRegistry interface {
	GetLocation(ctx context.Context, locationID id.ID) (*Location, error)
}

// ActorResolver maps a user id to a display name.
type ActorResolver interface {
	ResolveActorName(ctx context.Context, userID string) (string, error)
}

// ResolveActorName resolves userID through r, falling back to DefaultActorName
// when the id is empty, unknown, or the resolver fails.
func ResolveActorName(ctx context.Context, r ActorResolver, userID string) string {
	if userID == "" || r == nil {
		return DefaultActorName
	}
	name, err := r.ResolveActorName(ctx, userID)
	if err != nil || name == "" {
		return DefaultActorName
	}
	return name
}

// LabelRequest is what the printing pipeline needs to label a lot.
type LabelRequest struct {
	LotID          id.ID          `json:"lotId"`
	Identity       string         `json:"identity"`
	ItemName       string         `json:"itemName"`
	Quantity       types.Quantity `json:"quantity"`
	Unit           string         `json:"unit"`
	ExpirationDate time.Time      `json:"expirationDate"`
	LocationID     id.ID          `json:"locationId"`
	RequestedAt    time.Time      `json:"requestedAt"`
}

// LabelSink accepts label requests. The ledger never depends on the outcome.
type LabelSink interface {
	RequestLabel(ctx context.Context, req LabelRequest) error
}

// NopLabelSink discards label requests.
type NopLabelSink struct{}

// RequestLabel implements LabelSink.
func (NopLabelSink) RequestLabel(context.Context, LabelRequest) error { return nil }
