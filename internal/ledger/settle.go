package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/calculator"
	"github.com/mmynk/syndicate/internal/models"
)

func schedule(p *models.Payment) calculator.Schedule {
	return calculator.Schedule{
		Value: p.Value,
		Base:  p.VestBase,
		From:  p.VestFrom,
		End:   p.EndTime(),
	}
}

// owed returns the amount p should have paid out by now, never less than what
// it already has.
func owed(p *models.Payment, now int64) int64 {
	vested := calculator.Vested(schedule(p), now)
	if vested < p.PaidToDate {
		return p.PaidToDate
	}
	return vested
}

// Settle credits the payment's receiver with everything vested since the last
// settlement and returns the amount credited. Settling twice at the same
// instant credits nothing the second time.
//
// The caller must be the receiver or hold a settle delegation from the receiver.
func (l *Ledger) Settle(ctx context.Context, index int64, caller uuid.UUID) (int64, error) {
	p, err := l.loadPayment(ctx, index)
	if err != nil {
		return 0, err
	}
	if err := l.authorize(ctx, p, caller, permSettle); err != nil {
		return 0, err
	}
	return l.settle(ctx, p, l.now())
}

// settle brings p.PaidToDate up to now without any authorization check.
// p is updated in place and written back.
func (l *Ledger) settle(ctx context.Context, p *models.Payment, now int64) (int64, error) {
	delta := owed(p, now) - p.PaidToDate
	if delta <= 0 {
		return 0, nil
	}

	// Both writes land before anything else can observe the payment.
	p.PaidToDate += delta
	if err := l.state.UpdatePayment(ctx, p); err != nil {
		return 0, fmt.Errorf("failed to update payment %d: %w", p.Index, err)
	}
	if err := l.credit(ctx, p.Receiver, delta); err != nil {
		return 0, err
	}

	err := l.emit(ctx, &models.Event{
		Kind:         models.EventSettled,
		PaymentIndex: p.Index,
		Participant:  p.Receiver,
		Amount:       delta,
		At:           now,
	})
	if err != nil {
		return 0, err
	}

	l.logger.Debug("Payment settled", "index", p.Index, "credited", delta, "paid_to_date", p.PaidToDate)
	return delta, nil
}

// IsSettled reports whether the payment's window has closed and all of its
// value has been credited.
func (l *Ledger) IsSettled(ctx context.Context, index int64) (bool, error) {
	p, err := l.loadPayment(ctx, index)
	if err != nil {
		return false, err
	}
	if p.Duration == 0 {
		return true, nil
	}
	return l.now() >= p.EndTime() && p.PaidToDate == p.Value, nil
}
