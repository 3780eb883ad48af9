package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/syndicate/internal/ledger"
	"github.com/mmynk/syndicate/pkg/api"
)

type errorMapping struct {
	target error
	code   connect.Code
	kind   string
}

// errorMappings is ordered: the first match sets the code. Every match adds
// its kind, so a zero-amount fork reports both zero_value and
// insufficient_remainder.
var errorMappings = []errorMapping{
	{ledger.ErrZeroValue, connect.CodeInvalidArgument, api.KindZeroValue},
	{ledger.ErrInvalidDuration, connect.CodeInvalidArgument, api.KindInvalidDuration},
	{ledger.ErrInvalidAmount, connect.CodeInvalidArgument, api.KindInvalidAmount},
	{ledger.ErrInvalidParticipant, connect.CodeInvalidArgument, api.KindInvalidParticipant},
	{ledger.ErrIndexOutOfRange, connect.CodeOutOfRange, api.KindIndexOutOfRange},
	{ledger.ErrUnauthorized, connect.CodePermissionDenied, api.KindUnauthorized},
	{ledger.ErrInsufficientRemainder, connect.CodeFailedPrecondition, api.KindInsufficientRemainder},
	{ledger.ErrInsufficientBalance, connect.CodeFailedPrecondition, api.KindInsufficientBalance},
	{ledger.ErrBareTransfer, connect.CodeUnimplemented, api.KindBareTransfer},
	{ledger.ErrTransferFailed, connect.CodeUnavailable, api.KindTransferFailed},
	{ledger.ErrOverflow, connect.CodeResourceExhausted, api.KindOverflow},
}

// errorKind returns the api error kind for a ledger error, or "" for
// anything else.
func errorKind(err error) string {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.kind
		}
	}
	return ""
}

// toConnectError converts a ledger error into a Connect error carrying its
// kinds in the response metadata. Unknown errors become CodeInternal.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		if connectErr == nil {
			connectErr = connect.NewError(m.code, err)
		}
		connectErr.Meta().Add(api.ErrorKindKey, m.kind)
	}
	if connectErr == nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	return connectErr
}

// result labels an operation outcome for metrics.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := errorKind(err); kind != "" {
		return kind
	}
	return "internal"
}
