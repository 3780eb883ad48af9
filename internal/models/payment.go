package models

import "github.com/google/uuid"

// Payment is one vesting stream, either a root stream or a fork-derived fragment.
type Payment struct {
	// Index is the dense, zero-based position in the registry. Never reused.
	Index int64

	// Creator is the participant that funded the stream (or forked it off).
	Creator uuid.UUID

	// Receiver is the participant entitled to vested value.
	Receiver uuid.UUID

	// Value is the total number of units allocated to this payment.
	// Fixed at creation; only reduced when a child is forked off.
	Value int64

	// StartTime is the unix second the vesting window opened.
	StartTime int64

	// Duration is the vesting window length in seconds. Always > 0 for stored payments.
	Duration int64

	// PaidToDate is the cumulative amount already credited to Receiver's balance.
	PaidToDate int64

	// VestBase and VestFrom are the vesting checkpoint. Value vested before
	// VestFrom is VestBase; the rest vests linearly from VestFrom to EndTime.
	// A payment that was never forked has VestBase 0 and VestFrom == StartTime.
	VestBase int64
	VestFrom int64

	// IsFork reports whether this payment was produced by a fork.
	IsFork bool

	// ParentIndex is the payment this one was forked from. Only meaningful when IsFork.
	ParentIndex int64

	// ForkedChildren lists child payment indexes in fork order. Only grows.
	ForkedChildren []int64
}

// EndTime returns the unix second at which the payment is fully vested.
func (p *Payment) EndTime() int64 {
	return p.StartTime + p.Duration
}

// IsForked reports whether at least one child has been forked off this payment.
func (p *Payment) IsForked() bool {
	return len(p.ForkedChildren) > 0
}

// Remaining returns the value not yet credited to the receiver.
func (p *Payment) Remaining() int64 {
	return p.Value - p.PaidToDate
}

// Clone returns a deep copy, so callers can mutate it without aliasing ForkedChildren.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.ForkedChildren != nil {
		c.ForkedChildren = append([]int64(nil), p.ForkedChildren...)
	}
	return &c
}
