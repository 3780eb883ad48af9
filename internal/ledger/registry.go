package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

// CreatePayment streams value from creator to receiver over duration seconds,
// starting now, and returns the new payment's index.
//
// A zero duration is an instant payment: value is credited to the receiver's
// balance immediately, no payment is stored, and stored is false.
func (l *Ledger) CreatePayment(ctx context.Context, creator, receiver uuid.UUID, value, duration int64) (index int64, stored bool, err error) {
	if value <= 0 {
		return models.NoPayment, false, fmt.Errorf("%w: got %d", ErrZeroValue, value)
	}
	if duration < 0 {
		return models.NoPayment, false, fmt.Errorf("%w: got %d", ErrInvalidDuration, duration)
	}
	if receiver == uuid.Nil {
		return models.NoPayment, false, fmt.Errorf("receiver: %w", ErrInvalidParticipant)
	}

	now := l.now()
	if duration > math.MaxInt64-now {
		return models.NoPayment, false, fmt.Errorf("%w: %d seconds from %d overflows the end time", ErrInvalidDuration, duration, now)
	}

	if duration == 0 {
		if err := l.credit(ctx, receiver, value); err != nil {
			return models.NoPayment, false, err
		}
		err := l.emit(ctx, &models.Event{
			Kind:         models.EventInstantCredit,
			PaymentIndex: models.NoPayment,
			Participant:  receiver,
			Counterparty: creator,
			Amount:       value,
			At:           now,
		})
		if err != nil {
			return models.NoPayment, false, err
		}
		l.logger.Debug("Instant payment credited", "receiver", receiver, "value", value)
		return models.NoPayment, false, nil
	}

	p := &models.Payment{
		Creator:   creator,
		Receiver:  receiver,
		Value:     value,
		StartTime: now,
		Duration:  duration,
		VestFrom:  now,
	}
	if err := l.state.AppendPayment(ctx, p); err != nil {
		return models.NoPayment, false, fmt.Errorf("failed to store payment: %w", err)
	}

	err = l.emit(ctx, &models.Event{
		Kind:         models.EventPaymentCreated,
		PaymentIndex: p.Index,
		Participant:  receiver,
		Counterparty: creator,
		Amount:       value,
		At:           now,
	})
	if err != nil {
		return models.NoPayment, false, err
	}

	l.logger.Debug("Payment created", "index", p.Index, "receiver", receiver, "value", value, "duration", duration)
	return p.Index, true, nil
}

// Receive handles value sent to the ledger without naming an operation.
// It is always rejected; funds enter only through CreatePayment.
func (l *Ledger) Receive(_ context.Context, from uuid.UUID, value int64) error {
	return fmt.Errorf("%w: %d units from %s", ErrBareTransfer, value, from)
}

// Payment returns the payment at index.
func (l *Ledger) Payment(ctx context.Context, index int64) (*models.Payment, error) {
	return l.loadPayment(ctx, index)
}

// PaymentCount returns the number of stored payments.
func (l *Ledger) PaymentCount(ctx context.Context) (int64, error) {
	return l.state.PaymentCount(ctx)
}

// IsForked reports whether any child has been forked off the payment.
func (l *Ledger) IsForked(ctx context.Context, index int64) (bool, error) {
	p, err := l.loadPayment(ctx, index)
	if err != nil {
		return false, err
	}
	return p.IsForked(), nil
}

// Balance returns the participant's withdrawable balance.
func (l *Ledger) Balance(ctx context.Context, participant uuid.UUID) (int64, error) {
	return l.state.Balance(ctx, participant)
}

// Events returns up to limit journal entries after sequence number after.
func (l *Ledger) Events(ctx context.Context, after int64, limit int) ([]*models.Event, error) {
	return l.state.ListEvents(ctx, after, limit)
}
