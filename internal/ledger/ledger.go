// Package ledger implements the payment streaming ledger: creating streams,
// vesting them into balances, forking their unvested remainder, delegated
// authorization, and withdrawal to external recipients.
//
// A Ledger is a thin layer of rules over a storage.State. It holds no state of
// its own, starts no goroutines and never waits; callers that want to follow
// vesting poll Settle or IsSettled at their own cadence.
//
// Every operation must run inside a storage transaction. Operations validate
// all preconditions before their first write, and any error return means the
// enclosing transaction has to be discarded.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
	"github.com/mmynk/syndicate/internal/storage"
)

// Transferer moves value out of the ledger to an external recipient.
//
// Transfer may call back into the same Ledger. By the time it is invoked the
// withdrawn amount has already been debited in the State, so a re-entrant
// withdrawal sees the reduced balance.
//
// Re-entry is only possible in-process, through the same Ledger. A
// LedgerService holds its lock for the whole withdrawal, so a payout receiver
// calling back into the service blocks until the transfer times out, and the
// withdrawal then fails and rolls back.
type Transferer interface {
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}

// TransferFunc adapts a function to the Transferer interface.
type TransferFunc func(ctx context.Context, to uuid.UUID, amount int64) error

// Transfer calls f.
func (f TransferFunc) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	return f(ctx, to, amount)
}

// Ledger applies ledger operations to one storage.State.
type Ledger struct {
	state  storage.State
	clock  func() time.Time
	payout Transferer
	logger *slog.Logger
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithClock sets the time source. The ledger reads it once per operation and
// truncates it to whole seconds.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithTransferer sets the payout used by withdrawals.
func WithTransferer(t Transferer) Option {
	return func(l *Ledger) {
		l.payout = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a Ledger over st.
func New(st storage.State, opts ...Option) *Ledger {
	l := &Ledger{
		state:  st,
		clock:  time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Ledger) now() int64 {
	return l.clock().Unix()
}

// loadPayment fetches a payment, mapping a missing index to ErrIndexOutOfRange.
func (l *Ledger) loadPayment(ctx context.Context, index int64) (*models.Payment, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	p, err := l.state.GetPayment(ctx, index)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment %d: %w", index, err)
	}
	return p, nil
}

// credit adds amount to a participant's balance.
func (l *Ledger) credit(ctx context.Context, participant uuid.UUID, amount int64) error {
	balance, err := l.state.Balance(ctx, participant)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	sum, err := addAmounts(balance, amount)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(ctx, participant, sum); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (l *Ledger) emit(ctx context.Context, e *models.Event) error {
	if err := l.state.AppendEvent(ctx, e); err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Kind, err)
	}
	return nil
}

// addAmounts adds two non-negative amounts, failing instead of wrapping.
func addAmounts(a, b int64) (int64, error) {
	if b > math.MaxInt64-a {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}
