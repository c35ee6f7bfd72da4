// Package numerator provides PostgreSQL and in-memory implementations of
// core/numerator.Generator.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "lotledger/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides numbering backed by the sys_sequences table.
type Service struct {
	querier Querier

	// cacheMu protects ranges map
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service. The querier is normally the pool itself,
// so numbering never joins a business transaction.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., PR-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := buildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, key, opts)
	default:
		num, err = s.getNextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
func (s *Service) getNextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// getNextCached hands out numbers from memory, reserving a new range from DB when exhausted.
func (s *Service) getNextCached(ctx context.Context, key string, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		var newMax int64
		err := s.querier.QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		// Reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the current sequence value (for migration purposes).
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := buildKey(cfg, period)

	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set next number: %w", err)
	}
	return nil
}

// buildKey creates the sequence key based on config and period.
func buildKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case corenumerator.ResetMonthly:
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case corenumerator.ResetYearly:
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// formatNumber creates the final number string.
func formatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the sequence part of a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 || i == len(formatted)-1 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
