// Package memory provides an in-memory implementation of storage.Store.
// Transactions run on a copy of the data that replaces the original on commit.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
	"github.com/mmynk/syndicate/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

type delegationKey struct {
	owner    uuid.UUID
	delegate uuid.UUID
}

type data struct {
	payments    []*models.Payment
	balances    map[uuid.UUID]int64
	delegations map[delegationKey]models.Delegation
	events      []*models.Event
}

func (d *data) clone() *data {
	c := &data{
		payments:    make([]*models.Payment, len(d.payments)),
		balances:    make(map[uuid.UUID]int64, len(d.balances)),
		delegations: make(map[delegationKey]models.Delegation, len(d.delegations)),
		events:      make([]*models.Event, len(d.events)),
	}
	for i, p := range d.payments {
		c.payments[i] = p.Clone()
	}
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.delegations {
		c.delegations[k] = v
	}
	// Events are never mutated after append, so sharing pointers is safe.
	copy(c.events, d.events)
	return c
}

// Store implements storage.Store in process memory.
type Store struct {
	mu   sync.Mutex
	data *data
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: &data{
			balances:    make(map[uuid.UUID]int64),
			delegations: make(map[delegationKey]models.Delegation),
		},
	}
}

// Tx runs fn on a private copy of the data and publishes it if fn succeeds.
// Transactions are serialized; fn must not call Tx again.
func (s *Store) Tx(ctx context.Context, fn func(storage.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.data.clone()
	if err := fn(&State{d: working}); err != nil {
		return err
	}
	s.data = working
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// State is a storage.State over one transaction's working copy.
type State struct {
	d *data
}

// NewState returns a standalone State that is not attached to any Store.
// Useful when the caller manages atomicity itself.
func NewState() *State {
	return &State{d: New().data}
}

func (st *State) PaymentCount(_ context.Context) (int64, error) {
	return int64(len(st.d.payments)), nil
}

func (st *State) GetPayment(_ context.Context, index int64) (*models.Payment, error) {
	if index < 0 || index >= int64(len(st.d.payments)) {
		return nil, fmt.Errorf("payment %d: %w", index, storage.ErrNotFound)
	}
	return st.d.payments[index].Clone(), nil
}

func (st *State) AppendPayment(_ context.Context, p *models.Payment) error {
	p.Index = int64(len(st.d.payments))
	st.d.payments = append(st.d.payments, p.Clone())
	return nil
}

func (st *State) UpdatePayment(_ context.Context, p *models.Payment) error {
	if p.Index < 0 || p.Index >= int64(len(st.d.payments)) {
		return fmt.Errorf("payment %d: %w", p.Index, storage.ErrNotFound)
	}
	stored := st.d.payments[p.Index]
	stored.Value = p.Value
	stored.PaidToDate = p.PaidToDate
	stored.VestBase = p.VestBase
	stored.VestFrom = p.VestFrom
	stored.ForkedChildren = append([]int64(nil), p.ForkedChildren...)
	return nil
}

func (st *State) Balance(_ context.Context, participant uuid.UUID) (int64, error) {
	return st.d.balances[participant], nil
}

func (st *State) SetBalance(_ context.Context, participant uuid.UUID, amount int64) error {
	st.d.balances[participant] = amount
	return nil
}

func (st *State) GetDelegation(_ context.Context, owner, delegate uuid.UUID) (models.Delegation, error) {
	d, ok := st.d.delegations[delegationKey{owner, delegate}]
	if !ok {
		return models.Delegation{Owner: owner, Delegate: delegate}, nil
	}
	return d, nil
}

func (st *State) SetDelegation(_ context.Context, d models.Delegation) error {
	st.d.delegations[delegationKey{d.Owner, d.Delegate}] = d
	return nil
}

func (st *State) AppendEvent(_ context.Context, e *models.Event) error {
	e.Seq = int64(len(st.d.events)) + 1
	c := *e
	st.d.events = append(st.d.events, &c)
	return nil
}

func (st *State) ListEvents(_ context.Context, after int64, limit int) ([]*models.Event, error) {
	if after < 0 {
		after = 0
	}
	var events []*models.Event
	for i := after; i < int64(len(st.d.events)); i++ {
		if limit > 0 && len(events) >= limit {
			break
		}
		c := *st.d.events[i]
		events = append(events, &c)
	}
	return events, nil
}
