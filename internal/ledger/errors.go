package ledger

import "errors"

// Rejections. Every operation checks its preconditions before writing, and a
// failed operation leaves no partial effect behind.
var (
	// ErrZeroValue is returned when a stream or fork carries no value.
	ErrZeroValue = errors.New("value must be positive")

	// ErrIndexOutOfRange is returned for a negative or unassigned payment index.
	ErrIndexOutOfRange = errors.New("payment index out of range")

	// ErrUnauthorized is returned when the caller is neither the payment's
	// receiver nor a delegate of the receiver holding the needed permission.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientRemainder is returned when a fork asks for more than the
	// currently unvested part of a payment.
	ErrInsufficientRemainder = errors.New("insufficient unvested remainder")

	// ErrInsufficientBalance is returned when a withdrawal exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidDuration is returned for a negative stream duration.
	ErrInvalidDuration = errors.New("duration must not be negative")

	// ErrInvalidAmount is returned for a negative withdrawal amount.
	ErrInvalidAmount = errors.New("amount must not be negative")

	// ErrInvalidParticipant is returned when a receiver, target or delegate is the nil id.
	ErrInvalidParticipant = errors.New("participant id must not be nil")

	// ErrBareTransfer is returned for inbound value sent without an operation.
	// Value only enters the ledger through CreatePayment.
	ErrBareTransfer = errors.New("bare transfers are not accepted, use CreatePayment")

	// ErrTransferFailed wraps an error from the payout Transferer.
	ErrTransferFailed = errors.New("payout transfer failed")

	// ErrOverflow is returned when a balance would exceed the int64 range.
	ErrOverflow = errors.New("amount overflows balance")
)
