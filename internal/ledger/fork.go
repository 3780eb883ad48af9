package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

// Fork moves amount of a payment's unvested remainder into a new child payment
// for childReceiver and returns the child's index.
//
// The parent is settled up to now first, so value that has already vested
// (withdrawn or not) can never move into the child. The child vests over the
// parent's remaining window and ends at the same second. The parent keeps
// vesting what is left of its own remainder over that same window.
//
// The caller must be the receiver or hold a fork delegation from the receiver.
func (l *Ledger) Fork(ctx context.Context, index int64, childReceiver uuid.UUID, amount int64, caller uuid.UUID) (int64, error) {
	parent, err := l.loadPayment(ctx, index)
	if err != nil {
		return models.NoPayment, err
	}
	if err := l.authorize(ctx, parent, caller, permFork); err != nil {
		return models.NoPayment, err
	}
	if amount <= 0 {
		return models.NoPayment, fmt.Errorf("fork amount %d: %w: %w", amount, ErrInsufficientRemainder, ErrZeroValue)
	}
	if childReceiver == uuid.Nil {
		return models.NoPayment, fmt.Errorf("child receiver: %w", ErrInvalidParticipant)
	}

	now := l.now()
	end := parent.EndTime()

	// Check against the post-settlement remainder before writing anything.
	remaining := parent.Value - owed(parent, now)
	if amount > remaining || end <= now {
		return models.NoPayment, fmt.Errorf("%w: payment %d has %d unvested, asked for %d",
			ErrInsufficientRemainder, index, remaining, amount)
	}

	if _, err := l.settle(ctx, parent, now); err != nil {
		return models.NoPayment, err
	}

	child := &models.Payment{
		Creator:     caller,
		Receiver:    childReceiver,
		Value:       amount,
		StartTime:   now,
		Duration:    end - now,
		VestFrom:    now,
		IsFork:      true,
		ParentIndex: parent.Index,
	}
	if err := l.state.AppendPayment(ctx, child); err != nil {
		return models.NoPayment, fmt.Errorf("failed to store forked payment: %w", err)
	}

	// Rebase the parent's vesting at now: what is paid stays paid and the
	// reduced remainder vests linearly until the unchanged end time.
	parent.Value -= amount
	parent.VestBase = parent.PaidToDate
	parent.VestFrom = now
	parent.ForkedChildren = append(parent.ForkedChildren, child.Index)
	if err := l.state.UpdatePayment(ctx, parent); err != nil {
		return models.NoPayment, fmt.Errorf("failed to update payment %d: %w", parent.Index, err)
	}

	err = l.emit(ctx, &models.Event{
		Kind:         models.EventForked,
		PaymentIndex: parent.Index,
		Participant:  parent.Receiver,
		Counterparty: childReceiver,
		Amount:       amount,
		At:           now,
	})
	if err != nil {
		return models.NoPayment, err
	}

	l.logger.Debug("Payment forked",
		"index", parent.Index,
		"child", child.Index,
		"amount", amount,
		"parent_value", parent.Value,
	)
	return child.Index, nil
}
