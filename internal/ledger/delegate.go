package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

type permission int

const (
	permSettle permission = iota
	permFork
)

func (p permission) String() string {
	if p == permFork {
		return "fork"
	}
	return "settle"
}

// authorize checks that caller may act on p: either as its receiver or as a
// delegate the receiver granted perm to.
func (l *Ledger) authorize(ctx context.Context, p *models.Payment, caller uuid.UUID, perm permission) error {
	if caller == p.Receiver {
		return nil
	}

	d, err := l.state.GetDelegation(ctx, p.Receiver, caller)
	if err != nil {
		return fmt.Errorf("failed to load delegation: %w", err)
	}

	switch {
	case perm == permFork && d.CanFork:
		return nil
	case perm == permSettle && d.CanSettle:
		return nil
	}
	return fmt.Errorf("%w: %s may not %s payment %d", ErrUnauthorized, caller, perm, p.Index)
}

// Delegate grants (allowed) or revokes delegate's fork and settle authority
// over payments received by owner. It only ever adds to the owner's own
// authority and has no effect on other receivers' payments.
func (l *Ledger) Delegate(ctx context.Context, owner, delegate uuid.UUID, allowed bool) error {
	if delegate == uuid.Nil {
		return fmt.Errorf("delegate: %w", ErrInvalidParticipant)
	}

	d := models.Delegation{
		Owner:     owner,
		Delegate:  delegate,
		CanFork:   allowed,
		CanSettle: allowed,
	}
	if err := l.state.SetDelegation(ctx, d); err != nil {
		return fmt.Errorf("failed to store delegation: %w", err)
	}

	var flag int64
	if allowed {
		flag = 1
	}
	return l.emit(ctx, &models.Event{
		Kind:         models.EventDelegationSet,
		PaymentIndex: models.NoPayment,
		Participant:  owner,
		Counterparty: delegate,
		Amount:       flag,
		At:           l.now(),
	})
}

// Delegation returns what owner has granted delegate.
func (l *Ledger) Delegation(ctx context.Context, owner, delegate uuid.UUID) (models.Delegation, error) {
	return l.state.GetDelegation(ctx, owner, delegate)
}
