package numerator

import (
	"context"
	"sync"
	"time"

	corenumerator "lotledger/internal/core/numerator"
)

// MemoryService keeps sequences in process memory.
// Used by the in-memory store and tests; numbers restart with the process.
type MemoryService struct {
	mu        sync.Mutex
	sequences map[string]int64
}

var _ corenumerator.Generator = (*MemoryService)(nil)

// NewMemory creates an empty in-memory numerator.
func NewMemory() *MemoryService {
	return &MemoryService{sequences: make(map[string]int64)}
}

// GetNextNumber implements Generator. Strategy is irrelevant in memory.
func (m *MemoryService) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := buildKey(cfg, period)

	m.mu.Lock()
	m.sequences[key]++
	num := m.sequences[key]
	m.mu.Unlock()

	return formatNumber(cfg, period, num), nil
}

// SetNextNumber implements Generator.
func (m *MemoryService) SetNextNumber(_ context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	m.mu.Lock()
	m.sequences[buildKey(cfg, period)] = value
	m.mu.Unlock()
	return nil
}
