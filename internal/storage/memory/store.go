// Package memory is an in-process implementation of the storage ports. A
// single mutex serialises transactions, which makes every ledger operation
// trivially linearizable. It backs tests and single-node development runs.
package memory

import (
	"context"
	"sync"

	"github.com/cimillas/ticket-inventory/internal/domain"
)

type Store struct {
	mu sync.Mutex

	events       map[string]domain.Event
	units        map[string]domain.SellableUnit
	reservations map[string]domain.Reservation
	idempotency  map[string]string
	sales        map[string]domain.SaleRecord
	credits      map[string]domain.CreditBalance
}

func New() *Store {
	return &Store{
		events:       make(map[string]domain.Event),
		units:        make(map[string]domain.SellableUnit),
		reservations: make(map[string]domain.Reservation),
		idempotency:  make(map[string]string),
		sales:        make(map[string]domain.SaleRecord),
		credits:      make(map[string]domain.CreditBalance),
	}
}

type txKey struct{}

// txState collects undo steps so a failed transaction leaves no trace.
type txState struct {
	undo []func()
}

func (t *txState) record(f func()) {
	if t != nil {
		t.undo = append(t.undo, f)
	}
}

func txFromContext(ctx context.Context) *txState {
	tx, _ := ctx.Value(txKey{}).(*txState)
	return tx
}

// WithTx holds the store lock for the duration of fn and rolls back every
// change fn made if it returns an error.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// lock takes the store lock unless ctx already runs inside WithTx.
func (s *Store) lock(ctx context.Context) (*txState, func()) {
	if tx := txFromContext(ctx); tx != nil {
		return tx, func() {}
	}
	s.mu.Lock()
	return nil, s.mu.Unlock
}

func put[K comparable, V any](tx *txState, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	tx.record(func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func remove[K comparable, V any](tx *txState, m map[K]V, k K) {
	prev, existed := m[k]
	if !existed {
		return
	}
	delete(m, k)
	tx.record(func() { m[k] = prev })
}
