// Package memory provides an in-memory implementation of every repository
// and of tx.Manager. It backs unit tests and local demos.
//
// Transactions are serialized by one mutex: a transaction holds it from begin
// to commit, which is a stronger isolation than row locks and makes
// FOR UPDATE a no-op. A failed transaction restores the snapshot taken at
// begin, so rollback is observable exactly as with a database.
package memory

import (
	"context"
	"errors"
	"sync"

	"lotledger/internal/core/id"
	"lotledger/internal/core/tx"
	"lotledger/internal/domain/catalog"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/planned"
)

// state is everything a transaction may roll back.
type state struct {
	lots      map[id.ID]*lot.Lot
	movements []*ledger.Movement
	planned   map[id.ID]*planned.PlannedTransaction
}

func newState() state {
	return state{
		lots:    make(map[id.ID]*lot.Lot),
		planned: make(map[id.ID]*planned.PlannedTransaction),
	}
}

func (s state) clone() state {
	c := state{
		lots:      make(map[id.ID]*lot.Lot, len(s.lots)),
		movements: make([]*ledger.Movement, len(s.movements)),
		planned:   make(map[id.ID]*planned.PlannedTransaction, len(s.planned)),
	}
	for k, v := range s.lots {
		c.lots[k] = v.Clone()
	}
	copy(c.movements, s.movements)
	for k, v := range s.planned {
		c.planned[k] = v.Clone()
	}
	return c
}

// Store is the shared in-memory database.
type Store struct {
	mu    sync.Mutex
	state state

	// catalog data is read-only for the ledger and not transactional.
	catalogMu sync.RWMutex
	items     map[id.ID]*catalog.Item
	locations map[id.ID]*catalog.Location
	actors    map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		state:     newState(),
		items:     make(map[id.ID]*catalog.Item),
		locations: make(map[id.ID]*catalog.Location),
		actors:    make(map[string]string),
	}
}

type txKey struct{}

// inTx reports whether ctx carries a transaction of this store.
func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// read runs fn with the state, taking the lock unless ctx already holds it.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(&s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// write is read for mutations. Outside a transaction each write is atomic on its own.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	return s.read(ctx, fn)
}

// TxManager implements tx.Manager over a Store.
type TxManager struct {
	store *Store
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn holding the store lock. Nested calls reuse the
// outer transaction. An error or panic restores the state captured at begin.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s := m.store
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if r := recover(); r != nil {
			s.state = snapshot
			panic(r)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, s))
}

var errReadOnlyRollback = errors.New("read-only transaction rollback")

// ReadOnly executes fn in a transaction; writes inside fn are discarded.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return errReadOnlyRollback
	})
	if errors.Is(err, errReadOnlyRollback) {
		return nil
	}
	return err
}
