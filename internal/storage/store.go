// Package storage provides abstractions for persistent ledger state.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

// ErrNotFound is returned by State lookups for a missing payment.
var ErrNotFound = errors.New("not found")

// State is the ledger's view of durable storage for the span of one transaction:
// the payment registry, the balance store, the authorization policy, and the
// event journal. Reads observe writes made earlier in the same transaction.
type State interface {
	// PaymentCount returns the number of payments in the registry.
	PaymentCount(ctx context.Context) (int64, error)

	// GetPayment returns a copy of the payment at index, or ErrNotFound.
	GetPayment(ctx context.Context, index int64) (*models.Payment, error)

	// AppendPayment stores p at the next dense index and sets p.Index.
	AppendPayment(ctx context.Context, p *models.Payment) error

	// UpdatePayment overwrites the mutable fields of an existing payment:
	// Value, PaidToDate, VestBase, VestFrom and ForkedChildren.
	UpdatePayment(ctx context.Context, p *models.Payment) error

	// Balance returns the participant's balance. Unknown participants have 0.
	Balance(ctx context.Context, participant uuid.UUID) (int64, error)

	// SetBalance stores the participant's balance.
	SetBalance(ctx context.Context, participant uuid.UUID, amount int64) error

	// GetDelegation returns the delegation of delegate under owner.
	// A missing entry is returned as a Delegation with no permissions.
	GetDelegation(ctx context.Context, owner, delegate uuid.UUID) (models.Delegation, error)

	// SetDelegation stores d, replacing any previous entry for the same pair.
	SetDelegation(ctx context.Context, d models.Delegation) error

	// AppendEvent adds e to the journal and sets e.Seq.
	AppendEvent(ctx context.Context, e *models.Event) error

	// ListEvents returns up to limit events with Seq greater than after, in order.
	ListEvents(ctx context.Context, after int64, limit int) ([]*models.Event, error)
}

// Store owns the durable state. Tx runs fn against a State; when fn returns an
// error nothing it wrote is kept, otherwise all of it is committed together.
// A ctx cancelled before Tx starts aborts it. Once fn has returned nil the
// commit goes through even if ctx is cancelled meanwhile, since fn may already
// have paid value out of the ledger.
//
// This abstraction allows swapping storage backends (SQLite, in-memory)
// without changing the ledger or service layer.
type Store interface {
	Tx(ctx context.Context, fn func(State) error) error

	// Close releases any resources held by the store.
	Close() error
}
