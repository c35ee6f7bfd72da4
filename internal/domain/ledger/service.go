package ledger

import (
	"context"
	"fmt"
	"time"

	"lotledger/internal/core/apperror"
	appctx "lotledger/internal/core/context"
	"lotledger/internal/core/id"
	"lotledger/internal/domain"
	"lotledger/internal/domain/catalog"
)

// Service records and queries movements.
//
// Record and RecordBatch join the caller's transaction, so a movement commits
// together with the lot change it describes.
type Service struct {
	repo   Repository
	actors catalog.ActorResolver
	now    func() time.Time
}

// NewService creates a ledger service.
func NewService(repo Repository, actors catalog.ActorResolver) *Service {
	return &Service{
		repo:   repo,
		actors: actors,
		now:    time.Now,
	}
}

// WithClock replaces the clock (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record appends one movement.
func (s *Service) Record(ctx context.Context, m *Movement) (*Movement, error) {
	s.prepare(ctx, m, s.now().UTC())
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("append movement: %w", err)
	}
	return m, nil
}

// RecordBatch appends movements atomically with the caller's transaction.
func (s *Service) RecordBatch(ctx context.Context, ms []*Movement) error {
	if len(ms) == 0 {
		return nil
	}

	now := s.now().UTC()
	for i, m := range ms {
		s.prepare(ctx, m, now)
		if err := m.Validate(); err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				return appErr.WithDetail("index", i)
			}
			return err
		}
	}

	if err := s.repo.AppendBatch(ctx, ms); err != nil {
		return fmt.Errorf("append movements: %w", err)
	}
	return nil
}

// Query returns a page of movements.
func (s *Service) Query(ctx context.Context, filter Filter) (domain.ListResult[*Movement], error) {
	for _, t := range filter.Types {
		if !t.IsValid() {
			return domain.ListResult[*Movement]{}, apperror.NewValidation("invalid movement type").
				WithDetail("field", "type").
				WithDetail("value", string(t))
		}
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return domain.ListResult[*Movement]{}, apperror.NewValidation("date range is empty").
			WithDetail("field", "from")
	}

	filter.Page = filter.Page.Normalize()
	return s.repo.Query(ctx, filter)
}

// Totals sums quantities per movement type.
func (s *Service) Totals(ctx context.Context, filter Filter) (Totals, error) {
	return s.repo.Totals(ctx, filter)
}

// prepare fills id, timestamps and actor attribution.
func (s *Service) prepare(ctx context.Context, m *Movement, now time.Time) {
	if id.IsNil(m.ID) {
		m.ID = id.New()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = now
	}
	m.CreatedAt = now

	if m.ActorID == "" {
		m.ActorID = appctx.GetUserID(ctx)
	}
	if m.ActorName == "" {
		m.ActorName = catalog.ResolveActorName(ctx, s.actors, m.ActorID)
	}
}
