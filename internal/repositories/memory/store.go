package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
)

type table[T any] struct {
	name string
	rows map[string]T
	seq  map[string]int64
	next int64
}

func newTable[T any](name string) *table[T] {
	return &table[T]{name: name, rows: map[string]T{}, seq: map[string]int64{}}
}

func (t *table[T]) insert(id string, value T) error {
	if _, exists := t.rows[id]; exists {
		return conflict(t.name+".insert", id)
	}
	t.next++
	t.rows[id] = value
	t.seq[id] = t.next
	return nil
}

func (t *table[T]) get(op, id string) (T, error) {
	value, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, notFound(t.name+"."+op, id)
	}
	return value, nil
}

func (t *table[T]) put(id string, value T) error {
	if _, exists := t.rows[id]; !exists {
		return notFound(t.name+".update", id)
	}
	t.rows[id] = value
	return nil
}

func (t *table[T]) remove(id string) error {
	if _, exists := t.rows[id]; !exists {
		return notFound(t.name+".delete", id)
	}
	delete(t.rows, id)
	delete(t.seq, id)
	return nil
}

// filter returns matching rows in insertion order.
func (t *table[T]) filter(match func(T) bool) []T {
	ids := make([]string, 0, len(t.rows))
	for id, row := range t.rows {
		if match == nil || match(row) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int {
		return int(t.seq[a] - t.seq[b])
	})
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.rows[id])
	}
	return out
}

func (t *table[T]) clone() *table[T] {
	return &table[T]{
		name: t.name,
		rows: maps.Clone(t.rows),
		seq:  maps.Clone(t.seq),
		next: t.next,
	}
}

type state struct {
	carts           *table[cartRow]
	cartItems       *table[cartItemRow]
	cartItemOptions *table[cartItemOptionRow]
	orders          *table[orderRow]
	orderCodes      map[string]string
	orderItems      *table[orderItemRow]
	payments        *table[paymentRow]
	deliveries      *table[deliveryRow]

	channels     *table[channelRow]
	sections     *table[sectionRow]
	sales        *table[saleRow]
	snapshots    *table[snapshotRow]
	optionGroups *table[optionGroupRow]
	options      *table[optionRow]
}

func newState() *state {
	return &state{
		carts:           newTable[cartRow]("carts"),
		cartItems:       newTable[cartItemRow]("cartItems"),
		cartItemOptions: newTable[cartItemOptionRow]("cartItemOptions"),
		orders:          newTable[orderRow]("orders"),
		orderCodes:      map[string]string{},
		orderItems:      newTable[orderItemRow]("orderItems"),
		payments:        newTable[paymentRow]("payments"),
		deliveries:      newTable[deliveryRow]("deliveries"),
		channels:        newTable[channelRow]("channels"),
		sections:        newTable[sectionRow]("sections"),
		sales:           newTable[saleRow]("sales"),
		snapshots:       newTable[snapshotRow]("saleSnapshots"),
		optionGroups:    newTable[optionGroupRow]("optionGroups"),
		options:         newTable[optionRow]("options"),
	}
}

func (s *state) clone() *state {
	return &state{
		carts:           s.carts.clone(),
		cartItems:       s.cartItems.clone(),
		cartItemOptions: s.cartItemOptions.clone(),
		orders:          s.orders.clone(),
		orderCodes:      maps.Clone(s.orderCodes),
		orderItems:      s.orderItems.clone(),
		payments:        s.payments.clone(),
		deliveries:      s.deliveries.clone(),
		channels:        s.channels.clone(),
		sections:        s.sections.clone(),
		sales:           s.sales.clone(),
		snapshots:       s.snapshots.clone(),
		optionGroups:    s.optionGroups.clone(),
		options:         s.options.clone(),
	}
}

// store guards the shared state. Rows are stored by value so callers never alias stored data.
//
// While a transaction runs, committed holds the state as of its start. Reads outside the transaction
// see committed, so they never observe writes that a rollback may discard. Writes outside a transaction
// wait for the running one to finish.
type store struct {
	mu        sync.RWMutex
	txMu      chan struct{}
	data      *state
	committed *state
	closed    bool
}

func newStore() *store {
	return &store{data: newState(), txMu: make(chan struct{}, 1)}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lockTx acquires the transaction slot and returns its release function.
func (s *store) lockTx(ctx context.Context) (func(), error) {
	select {
	case s.txMu <- struct{}{}:
		return func() { <-s.txMu }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *store) read(ctx context.Context, op string, fn func(*state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return unavailable(op)
	}
	if s.committed != nil && !inTx(ctx) {
		return fn(s.committed)
	}
	return fn(s.data)
}

func (s *store) write(ctx context.Context, op string, fn func(*state) error) error {
	if !inTx(ctx) {
		release, err := s.lockTx(ctx)
		if err != nil {
			return err
		}
		defer release()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return unavailable(op)
	}
	return fn(s.data)
}
