// Package api defines the wire contract of the syndicate.v1.LedgerService
// Connect service: procedure names, request and response messages, the JSON
// codec they travel in, and the error kinds reported in response metadata.
package api

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the service.
const LedgerServiceName = "syndicate.v1.LedgerService"

// ServicePath is the path prefix every procedure lives under.
const ServicePath = "/" + LedgerServiceName + "/"

// Procedure paths.
const (
	CreatePaymentProcedure = ServicePath + "CreatePayment"
	SettleProcedure        = ServicePath + "Settle"
	ForkProcedure          = ServicePath + "Fork"
	WithdrawProcedure      = ServicePath + "Withdraw"
	DelegateProcedure      = ServicePath + "Delegate"
	GetPaymentProcedure    = ServicePath + "GetPayment"
	IsSettledProcedure     = ServicePath + "IsSettled"
	IsForkedProcedure      = ServicePath + "IsForked"
	GetBalanceProcedure    = ServicePath + "GetBalance"
	GetDelegationProcedure = ServicePath + "GetDelegation"
	ListEventsProcedure    = ServicePath + "ListEvents"
)

// ErrorKindKey is the response metadata key naming the ledger error kind.
const ErrorKindKey = "Ledger-Error"

// Error kinds.
const (
	KindZeroValue             = "zero_value"
	KindIndexOutOfRange       = "index_out_of_range"
	KindUnauthorized          = "unauthorized"
	KindInsufficientRemainder = "insufficient_remainder"
	KindInsufficientBalance   = "insufficient_balance"
	KindInvalidDuration       = "invalid_duration"
	KindInvalidAmount         = "invalid_amount"
	KindInvalidParticipant    = "invalid_participant"
	KindBareTransfer          = "bare_transfer"
	KindTransferFailed        = "transfer_failed"
	KindOverflow              = "overflow"
)

// Codec encodes messages as plain JSON. It replaces Connect's protobuf JSON
// codec under the same "json" name, so requests use application/json.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// WithCodec returns the Connect option every client and handler of this
// service must use.
func WithCodec() connect.Option {
	return connect.WithCodec(Codec{})
}
