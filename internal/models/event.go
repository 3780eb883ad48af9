package models

import "github.com/google/uuid"

// EventKind names the effect an Event records.
type EventKind string

const (
	EventPaymentCreated EventKind = "payment_created"
	EventInstantCredit  EventKind = "instant_credit"
	EventSettled        EventKind = "settled"
	EventForked         EventKind = "forked"
	EventWithdrawn      EventKind = "withdrawn"
	EventDelegationSet  EventKind = "delegation_set"
)

// NoPayment is the PaymentIndex of events not tied to a payment.
const NoPayment int64 = -1

// Event is one journal entry. Events are appended in the same transaction
// as the effect they describe, so the journal never runs ahead of state.
type Event struct {
	// Seq is assigned by the store, increasing from 1.
	Seq int64

	Kind EventKind

	// PaymentIndex is the payment involved, or NoPayment.
	PaymentIndex int64

	// Participant is the party whose state changed (receiver, withdrawer, owner).
	Participant uuid.UUID

	// Counterparty depends on Kind: the creator for payment_created, the child
	// receiver for forked, the target for withdrawn, the delegate for delegation_set.
	Counterparty uuid.UUID

	// Amount is the value moved. For delegation_set it is 1 when granted, 0 when revoked.
	Amount int64

	// At is the unix second of the effect.
	At int64
}
