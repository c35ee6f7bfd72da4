package memory

import (
	"context"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/id"
	"lotledger/internal/domain/catalog"
)

// Catalog implements the item catalog, location registry and actor resolver.
type Catalog struct {
	store *Store
}

var (
	_ catalog.ItemCatalog      = (*Catalog)(nil)
	_ catalog.LocationRegistry = (*Catalog)(nil)
	_ catalog.ActorResolver    = (*Catalog)(nil)
)

// NewCatalog creates catalog collaborators over store.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{store: store}
}

// PutItem adds or replaces an item.
func (c *Catalog) PutItem(item *catalog.Item) {
	c.store.catalogMu.Lock()
	defer c.store.catalogMu.Unlock()
	cp := *item
	c.store.items[item.ID] = &cp
}

// PutLocation adds or replaces a location.
func (c *Catalog) PutLocation(loc *catalog.Location) {
	c.store.catalogMu.Lock()
	defer c.store.catalogMu.Unlock()
	cp := *loc
	c.store.locations[loc.ID] = &cp
}

// RemoveLocation drops a location, as if it was retired from the registry.
func (c *Catalog) RemoveLocation(locationID id.ID) {
	c.store.catalogMu.Lock()
	defer c.store.catalogMu.Unlock()
	delete(c.store.locations, locationID)
}

// PutActor registers a display name.
func (c *Catalog) PutActor(userID, name string) {
	c.store.catalogMu.Lock()
	defer c.store.catalogMu.Unlock()
	c.store.actors[userID] = name
}

func (c *Catalog) GetItem(_ context.Context, itemID id.ID) (*catalog.Item, error) {
	c.store.catalogMu.RLock()
	defer c.store.catalogMu.RUnlock()
	item, ok := c.store.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID)
	}
	cp := *item
	return &cp, nil
}

func (c *Catalog) GetLocation(_ context.Context, locationID id.ID) (*catalog.Location, error) {
	c.store.catalogMu.RLock()
	defer c.store.catalogMu.RUnlock()
	loc, ok := c.store.locations[locationID]
	if !ok {
		return nil, apperror.NewNotFound("location", locationID)
	}
	cp := *loc
	return &cp, nil
}

func (c *Catalog) ResolveActorName(_ context.Context, userID string) (string, error) {
	c.store.catalogMu.RLock()
	defer c.store.catalogMu.RUnlock()
	name, ok := c.store.actors[userID]
	if !ok {
		return "", apperror.NewNotFound("actor", userID)
	}
	return name, nil
}
