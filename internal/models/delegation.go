package models

import "github.com/google/uuid"

// Delegation grants Delegate a subset of Owner's authority over payments
// where Owner is the receiver. It never restricts the owner's own authority.
type Delegation struct {
	Owner    uuid.UUID
	Delegate uuid.UUID

	// CanFork allows the delegate to fork the owner's payments.
	CanFork bool

	// CanSettle allows the delegate to settle the owner's payments.
	CanSettle bool
}

// Allowed reports whether the delegation carries any permission at all.
func (d Delegation) Allowed() bool {
	return d.CanFork || d.CanSettle
}
