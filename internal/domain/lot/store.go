package lot

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	"lotledger/internal/core/barcode"
	"lotledger/internal/core/id"
	"lotledger/internal/core/types"
	"lotledger/internal/domain"
	"lotledger/internal/domain/catalog"
	"lotledger/pkg/logger"
)

// IdentityGenerator issues barcodes for new lots.
type IdentityGenerator interface {
	Generate() string
}

// Config tunes the store.
type Config struct {
	// ExpiringWindow is how long before expiration a lot becomes EXPIRING.
	ExpiringWindow time.Duration
	// IdentityRetries bounds regeneration when a generated identity collides.
	IdentityRetries int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ExpiringWindow:  72 * time.Hour,
		IdentityRetries: 5,
	}
}

// Store is the Lot Store service.
//
// Store does not open transactions. Create, Decrement and FindConsumableLots
// must be called with a context carrying one, so that locks taken here are
// held until the caller commits.
type Store struct {
	repo       Repository
	items      catalog.ItemCatalog
	locations  catalog.LocationRegistry
	identities IdentityGenerator
	cfg        Config
	now        func() time.Time
}

// NewStore creates a lot store.
func NewStore(
	repo Repository,
	items catalog.ItemCatalog,
	locations catalog.LocationRegistry,
	identities IdentityGenerator,
	cfg Config,
) *Store {
	if cfg.IdentityRetries < 1 {
		cfg.IdentityRetries = 1
	}
	return &Store{
		repo:       repo,
		items:      items,
		locations:  locations,
		identities: identities,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock replaces the clock (tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Now returns the store clock in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

// Create persists a new lot.
//
// Unset fields are derived: Unit from the item, ExpirationDate from the item's
// shelf life, FirstReceivedAt from ReceivedAt, Identity from the generator.
// A caller-supplied identity must be a valid barcode and must be unused.
func (s *Store) Create(ctx context.Context, l *Lot) (*Lot, error) {
	if l.ReceivedAt.IsZero() {
		l.ReceivedAt = s.Now()
	}
	if err := l.Validate(ctx); err != nil {
		return nil, err
	}

	item, err := s.items.GetItem(ctx, l.ItemID)
	if err != nil {
		return nil, err
	}
	location, err := s.locations.GetLocation(ctx, l.LocationID)
	if err != nil {
		return nil, err
	}
	if err := location.CanHoldStock(); err != nil {
		return nil, err
	}

	unit, err := item.CheckUnit(l.Unit)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	l.Unit = unit
	if id.IsNil(l.ID) {
		l.ID = id.New()
	}
	if l.FirstReceivedAt.IsZero() || l.FirstReceivedAt.After(l.ReceivedAt) {
		l.FirstReceivedAt = l.ReceivedAt
	}
	if l.ExpirationDate.IsZero() {
		l.ExpirationDate = item.ExpirationFrom(l.ReceivedAt)
	}
	l.InitialQuantity = l.RemainingQuantity
	l.Status = StatusAt(l.ExpirationDate, now, s.cfg.ExpiringWindow)
	l.CreatedAt = now
	l.UpdatedAt = now

	if l.Identity != nil {
		if !barcode.Validate(*l.Identity) {
			return nil, apperror.NewValidation("invalid lot identity").
				WithDetail("field", "identity").
				WithDetail("value", *l.Identity)
		}
		if err := s.repo.Insert(ctx, l); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := s.insertWithGeneratedIdentity(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// insertWithGeneratedIdentity retries on identity collisions, which are
// expected when several processes mint identities in the same millisecond.
func (s *Store) insertWithGeneratedIdentity(ctx context.Context, l *Lot) error {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.IdentityRetries; attempt++ {
		identity := s.identities.Generate()
		l.Identity = &identity

		err := s.repo.Insert(ctx, l)
		if err == nil {
			return nil
		}
		if !apperror.IsDuplicate(err) {
			return err
		}

		lastErr = err
		logger.Debug(ctx, "lot identity collision, regenerating",
			"identity", identity,
			"attempt", attempt,
		)
	}

	l.Identity = nil
	return fmt.Errorf("identity collisions exhausted after %d attempts: %w", s.cfg.IdentityRetries, lastErr)
}

// Decrement takes amount from a lot under a row lock.
func (s *Store) Decrement(ctx context.Context, lotID id.ID, amount types.Quantity) (*Lot, error) {
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("decrement amount must be positive").
			WithDetail("lotId", lotID).
			WithDetail("value", amount.String())
	}

	l, err := s.repo.GetByID(ctx, lotID, domain.LockForUpdate)
	if err != nil {
		return nil, err
	}

	if amount.GreaterThan(l.RemainingQuantity) {
		return nil, apperror.NewInsufficientStock(
			l.ItemID.String(),
			l.LocationID.String(),
			amount.String(),
			l.RemainingQuantity.String(),
		).WithDetail("lotId", lotID)
	}

	now := s.Now()
	remaining := l.RemainingQuantity.Sub(amount)
	status := StatusAt(l.ExpirationDate, now, s.cfg.ExpiringWindow)
	if err := s.repo.SetRemaining(ctx, lotID, remaining, status, now); err != nil {
		return nil, fmt.Errorf("set remaining: %w", err)
	}

	l.RemainingQuantity = remaining
	l.Status = status
	l.UpdatedAt = now
	return l, nil
}

// FindConsumableLots locks and returns the lots an allocation may consume,
// in consumption order.
func (s *Store) FindConsumableLots(ctx context.Context, itemID, locationID id.ID) ([]*Lot, error) {
	return s.repo.FindConsumable(ctx, itemID, locationID, domain.LockForUpdate)
}

// GetByID returns a lot without locking.
func (s *Store) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	return s.repo.GetByID(ctx, lotID, domain.LockNone)
}

// LotWithIdentity pairs a lot with its decoded barcode.
type LotWithIdentity struct {
	*Lot
	IdentityInfo barcode.Info `json:"identityInfo"`
}

// GetByIdentity returns the lot carrying identity together with the decoded barcode.
func (s *Store) GetByIdentity(ctx context.Context, identity string) (*LotWithIdentity, error) {
	info, err := barcode.Parse(identity)
	if err != nil {
		return nil, apperror.NewValidation("invalid lot identity").
			WithDetail("field", "identity").
			WithCause(err)
	}

	l, err := s.repo.GetByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &LotWithIdentity{Lot: l, IdentityInfo: info}, nil
}

// List returns lots matching the filter.
func (s *Store) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error) {
	filter.Page = filter.Page.Normalize()
	return s.repo.List(ctx, filter)
}

// Available sums remaining stock of an item at a location.
func (s *Store) Available(ctx context.Context, itemID, locationID id.ID) (types.Quantity, error) {
	return s.repo.SumConsumable(ctx, itemID, locationID)
}

// RefreshStatuses recomputes lot statuses against the store clock.
func (s *Store) RefreshStatuses(ctx context.Context) (int64, error) {
	changed, err := s.repo.RefreshStatuses(ctx, s.Now(), s.cfg.ExpiringWindow)
	if err != nil {
		return 0, fmt.Errorf("refresh lot statuses: %w", err)
	}
	if changed > 0 {
		logger.Info(ctx, "lot statuses refreshed", "changed", changed)
	}
	return changed, nil
}
