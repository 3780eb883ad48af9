package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
)

// WithdrawRequest describes a withdrawal from the caller's own balance.
// The zero value withdraws the whole balance to the caller.
type WithdrawRequest struct {
	// Target receives the transfer. Nil means the caller.
	Target *uuid.UUID

	// Amount to withdraw. Nil means the whole balance.
	Amount *int64

	// Settle lists payments to settle before withdrawing, so newly vested value
	// can be withdrawn in the same operation. No authorization is needed: a
	// settlement only ever credits a payment's own receiver.
	Settle []int64
}

// Withdrawal is the outcome of a successful withdrawal.
type Withdrawal struct {
	Target  uuid.UUID
	Amount  int64
	Settled int64 // amount credited to the caller by the settle step
}

// WithdrawAll withdraws the caller's whole balance to the caller.
func (l *Ledger) WithdrawAll(ctx context.Context, caller uuid.UUID) (Withdrawal, error) {
	return l.Withdraw(ctx, caller, WithdrawRequest{})
}

// WithdrawTo withdraws the caller's whole balance to target.
func (l *Ledger) WithdrawTo(ctx context.Context, caller, target uuid.UUID) (Withdrawal, error) {
	return l.Withdraw(ctx, caller, WithdrawRequest{Target: &target})
}

// WithdrawAmount withdraws amount from the caller's balance to target.
func (l *Ledger) WithdrawAmount(ctx context.Context, caller, target uuid.UUID, amount int64) (Withdrawal, error) {
	return l.Withdraw(ctx, caller, WithdrawRequest{Target: &target, Amount: &amount})
}

// SettleAndWithdraw settles the listed payments, then withdraws amount from
// the caller's balance to target.
func (l *Ledger) SettleAndWithdraw(ctx context.Context, caller, target uuid.UUID, amount int64, indexes []int64) (Withdrawal, error) {
	return l.Withdraw(ctx, caller, WithdrawRequest{Target: &target, Amount: &amount, Settle: indexes})
}

// Withdraw moves value out of the caller's balance to an external recipient.
//
// Precondition: every index in req.Settle exists and the requested amount is
// covered by the balance after those settlements. Both are checked before any
// write.
//
// Postcondition, holding when the Transferer is invoked: the settlements are
// applied, the amount has been debited from the caller's balance, and the
// withdrawal is journaled. A Transferer that re-enters the ledger therefore
// cannot withdraw the same value twice. A non-nil error from the Transferer
// is returned wrapped in ErrTransferFailed and the transaction must be rolled back.
func (l *Ledger) Withdraw(ctx context.Context, caller uuid.UUID, req WithdrawRequest) (Withdrawal, error) {
	target := caller
	if req.Target != nil {
		target = *req.Target
	}
	if target == uuid.Nil {
		return Withdrawal{}, fmt.Errorf("target: %w", ErrInvalidParticipant)
	}
	if req.Amount != nil && *req.Amount < 0 {
		return Withdrawal{}, fmt.Errorf("%w: got %d", ErrInvalidAmount, *req.Amount)
	}

	now := l.now()

	// Load every payment to settle and project what settling pays the caller.
	var toSettle []*models.Payment
	seen := make(map[int64]bool, len(req.Settle))
	var incoming int64
	for _, index := range req.Settle {
		if seen[index] {
			continue
		}
		seen[index] = true

		p, err := l.loadPayment(ctx, index)
		if err != nil {
			return Withdrawal{}, err
		}
		toSettle = append(toSettle, p)

		if p.Receiver == caller {
			sum, err := addAmounts(incoming, owed(p, now)-p.PaidToDate)
			if err != nil {
				return Withdrawal{}, err
			}
			incoming = sum
		}
	}

	balance, err := l.state.Balance(ctx, caller)
	if err != nil {
		return Withdrawal{}, fmt.Errorf("failed to read balance: %w", err)
	}
	available, err := addAmounts(balance, incoming)
	if err != nil {
		return Withdrawal{}, err
	}

	amount := available
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount > available {
		return Withdrawal{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, available)
	}

	// Effects.
	for _, p := range toSettle {
		if _, err := l.settle(ctx, p, now); err != nil {
			return Withdrawal{}, err
		}
	}

	if err := l.debit(ctx, caller, amount); err != nil {
		return Withdrawal{}, err
	}

	w := Withdrawal{Target: target, Amount: amount, Settled: incoming}
	if amount == 0 {
		return w, nil
	}

	err = l.emit(ctx, &models.Event{
		Kind:         models.EventWithdrawn,
		PaymentIndex: models.NoPayment,
		Participant:  caller,
		Counterparty: target,
		Amount:       amount,
		At:           now,
	})
	if err != nil {
		return Withdrawal{}, err
	}

	// Interaction, strictly after the debit above.
	if l.payout == nil {
		return Withdrawal{}, fmt.Errorf("%w: no payout configured", ErrTransferFailed)
	}
	if err := l.payout.Transfer(ctx, target, amount); err != nil {
		return Withdrawal{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	l.logger.Debug("Withdrawal transferred", "caller", caller, "target", target, "amount", amount)
	return w, nil
}

// debit subtracts amount from a participant's balance.
func (l *Ledger) debit(ctx context.Context, participant uuid.UUID, amount int64) error {
	balance, err := l.state.Balance(ctx, participant)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	if amount > balance {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, balance)
	}
	if err := l.state.SetBalance(ctx, participant, balance-amount); err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	return nil
}
