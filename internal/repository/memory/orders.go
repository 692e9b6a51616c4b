// Package memory holds in-process stores used when no external database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/ordertx"
)

// OrderStore keeps orders in a map. Transactions are serialized by one mutex.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]domain.Order)}
}

// Create inserts o; an existing id is a conflict.
func (s *OrderStore) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %q: %w", o.ID, apperr.ErrConflict)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Get returns a copy of the order.
func (s *OrderStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %q: %w", id, apperr.ErrNotFound)
	}
	return o.Clone(), nil
}

// List returns copies of matching orders, oldest first.
func (s *OrderStore) List(_ context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0)
	for _, o := range s.orders {
		if f.Match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// WithTx runs fn with exclusive access; staged changes are kept only if fn succeeds.
func (s *OrderStore) WithTx(ctx context.Context, fn func(tx ordertx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &orderTx{store: s, staged: make(map[string]domain.Order)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, o := range tx.staged {
		s.orders[id] = o
	}
	return nil
}

type orderTx struct {
	store  *OrderStore
	staged map[string]domain.Order
}

func (t *orderTx) GetForUpdate(_ context.Context, id string) (domain.Order, error) {
	if o, ok := t.staged[id]; ok {
		return o.Clone(), nil
	}
	o, ok := t.store.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %q: %w", id, apperr.ErrNotFound)
	}
	return o.Clone(), nil
}

func (t *orderTx) AppendDecision(_ context.Context, _ domain.Decision, updated domain.Order) error {
	if _, ok := t.store.orders[updated.ID]; !ok {
		return fmt.Errorf("order %q: %w", updated.ID, apperr.ErrNotFound)
	}
	t.staged[updated.ID] = updated.Clone()
	return nil
}
