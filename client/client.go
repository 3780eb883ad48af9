// Package client is a typed Go client for the LedgerService.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/ledger"
	"github.com/mmynk/syndicate/pkg/api"
)

// Client calls a LedgerService over Connect. Ledger errors returned by the
// server are restored to the matching ledger sentinel, so callers can test
// them with errors.Is.
type Client struct {
	createPayment *connect.Client[api.CreatePaymentRequest, api.CreatePaymentResponse]
	settle        *connect.Client[api.SettleRequest, api.SettleResponse]
	fork          *connect.Client[api.ForkRequest, api.ForkResponse]
	withdraw      *connect.Client[api.WithdrawRequest, api.WithdrawResponse]
	delegate      *connect.Client[api.DelegateRequest, api.DelegateResponse]
	getPayment    *connect.Client[api.GetPaymentRequest, api.GetPaymentResponse]
	isSettled     *connect.Client[api.IsSettledRequest, api.IsSettledResponse]
	isForked      *connect.Client[api.IsForkedRequest, api.IsForkedResponse]
	getBalance    *connect.Client[api.GetBalanceRequest, api.GetBalanceResponse]
	getDelegation *connect.Client[api.GetDelegationRequest, api.GetDelegationResponse]
	listEvents    *connect.Client[api.ListEventsRequest, api.ListEventsResponse]
}

// New creates a Client for the server at baseURL. Pass WithToken to
// authenticate as a participant.
func New(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{api.WithCodec()}, opts...)
	return &Client{
		createPayment: connect.NewClient[api.CreatePaymentRequest, api.CreatePaymentResponse](httpClient, baseURL+api.CreatePaymentProcedure, opts...),
		settle:        connect.NewClient[api.SettleRequest, api.SettleResponse](httpClient, baseURL+api.SettleProcedure, opts...),
		fork:          connect.NewClient[api.ForkRequest, api.ForkResponse](httpClient, baseURL+api.ForkProcedure, opts...),
		withdraw:      connect.NewClient[api.WithdrawRequest, api.WithdrawResponse](httpClient, baseURL+api.WithdrawProcedure, opts...),
		delegate:      connect.NewClient[api.DelegateRequest, api.DelegateResponse](httpClient, baseURL+api.DelegateProcedure, opts...),
		getPayment:    connect.NewClient[api.GetPaymentRequest, api.GetPaymentResponse](httpClient, baseURL+api.GetPaymentProcedure, opts...),
		isSettled:     connect.NewClient[api.IsSettledRequest, api.IsSettledResponse](httpClient, baseURL+api.IsSettledProcedure, opts...),
		isForked:      connect.NewClient[api.IsForkedRequest, api.IsForkedResponse](httpClient, baseURL+api.IsForkedProcedure, opts...),
		getBalance:    connect.NewClient[api.GetBalanceRequest, api.GetBalanceResponse](httpClient, baseURL+api.GetBalanceProcedure, opts...),
		getDelegation: connect.NewClient[api.GetDelegationRequest, api.GetDelegationResponse](httpClient, baseURL+api.GetDelegationProcedure, opts...),
		listEvents:    connect.NewClient[api.ListEventsRequest, api.ListEventsResponse](httpClient, baseURL+api.ListEventsProcedure, opts...),
	}
}

// WithToken authenticates every request with a bearer token.
func WithToken(token string) connect.ClientOption {
	return connect.WithInterceptors(connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			req.Header().Set("Authorization", "Bearer "+token)
			return next(ctx, req)
		}
	}))
}

var sentinels = map[string]error{
	api.KindZeroValue:             ledger.ErrZeroValue,
	api.KindIndexOutOfRange:       ledger.ErrIndexOutOfRange,
	api.KindUnauthorized:          ledger.ErrUnauthorized,
	api.KindInsufficientRemainder: ledger.ErrInsufficientRemainder,
	api.KindInsufficientBalance:   ledger.ErrInsufficientBalance,
	api.KindInvalidDuration:       ledger.ErrInvalidDuration,
	api.KindInvalidAmount:         ledger.ErrInvalidAmount,
	api.KindInvalidParticipant:    ledger.ErrInvalidParticipant,
	api.KindBareTransfer:          ledger.ErrBareTransfer,
	api.KindTransferFailed:        ledger.ErrTransferFailed,
	api.KindOverflow:              ledger.ErrOverflow,
}

// convertError wraps the ledger sentinels named in a Connect error's metadata
// around the original error. Errors without any are returned unchanged.
func convertError(err error) error {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return err
	}
	kinds := connectErr.Meta().Values(api.ErrorKindKey)
	for i := len(kinds) - 1; i >= 0; i-- {
		if sentinel, ok := sentinels[kinds[i]]; ok {
			err = fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}

// CreatePayment streams value to receiver over duration seconds. A zero
// duration credits receiver immediately and returns stored false.
func (c *Client) CreatePayment(ctx context.Context, receiver uuid.UUID, value, duration int64) (index int64, stored bool, err error) {
	resp, err := c.createPayment.CallUnary(ctx, connect.NewRequest(&api.CreatePaymentRequest{
		Receiver: receiver,
		Value:    value,
		Duration: duration,
	}))
	if err != nil {
		return 0, false, convertError(err)
	}
	return resp.Msg.Index, resp.Msg.Stored, nil
}

// Settle settles a payment and returns the amount credited and its new state.
func (c *Client) Settle(ctx context.Context, index int64) (int64, api.Payment, error) {
	resp, err := c.settle.CallUnary(ctx, connect.NewRequest(&api.SettleRequest{Index: index}))
	if err != nil {
		return 0, api.Payment{}, convertError(err)
	}
	return resp.Msg.Credited, resp.Msg.Payment, nil
}

// Fork forks amount of a payment's remainder to childReceiver and returns the
// child's index.
func (c *Client) Fork(ctx context.Context, index int64, childReceiver uuid.UUID, amount int64) (int64, error) {
	resp, err := c.fork.CallUnary(ctx, connect.NewRequest(&api.ForkRequest{
		Index:         index,
		ChildReceiver: childReceiver,
		Amount:        amount,
	}))
	if err != nil {
		return 0, convertError(err)
	}
	return resp.Msg.ChildIndex, nil
}

// Withdraw performs a withdrawal from the caller's balance.
func (c *Client) Withdraw(ctx context.Context, req *api.WithdrawRequest) (*api.WithdrawResponse, error) {
	resp, err := c.withdraw.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, convertError(err)
	}
	return resp.Msg, nil
}

// WithdrawAll withdraws the caller's whole balance to the caller.
func (c *Client) WithdrawAll(ctx context.Context) (int64, error) {
	resp, err := c.Withdraw(ctx, &api.WithdrawRequest{})
	if err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

// Delegate grants or revokes delegate's authority over the caller's payments.
func (c *Client) Delegate(ctx context.Context, delegate uuid.UUID, allowed bool) error {
	_, err := c.delegate.CallUnary(ctx, connect.NewRequest(&api.DelegateRequest{
		Delegate: delegate,
		Allowed:  allowed,
	}))
	return convertError(err)
}

// Payment returns a payment record.
func (c *Client) Payment(ctx context.Context, index int64) (api.Payment, error) {
	resp, err := c.getPayment.CallUnary(ctx, connect.NewRequest(&api.GetPaymentRequest{Index: index}))
	if err != nil {
		return api.Payment{}, convertError(err)
	}
	return resp.Msg.Payment, nil
}

// IsSettled reports whether a payment is fully vested and settled.
func (c *Client) IsSettled(ctx context.Context, index int64) (bool, error) {
	resp, err := c.isSettled.CallUnary(ctx, connect.NewRequest(&api.IsSettledRequest{Index: index}))
	if err != nil {
		return false, convertError(err)
	}
	return resp.Msg.Settled, nil
}

// IsForked reports whether a payment has forked children.
func (c *Client) IsForked(ctx context.Context, index int64) (bool, error) {
	resp, err := c.isForked.CallUnary(ctx, connect.NewRequest(&api.IsForkedRequest{Index: index}))
	if err != nil {
		return false, convertError(err)
	}
	return resp.Msg.Forked, nil
}

// Balance returns participant's balance. uuid.Nil asks for the caller's own.
func (c *Client) Balance(ctx context.Context, participant uuid.UUID) (int64, error) {
	req := &api.GetBalanceRequest{}
	if participant != uuid.Nil {
		req.Participant = &participant
	}
	resp, err := c.getBalance.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return 0, convertError(err)
	}
	return resp.Msg.Balance, nil
}

// Delegation returns what owner has granted delegate.
func (c *Client) Delegation(ctx context.Context, owner, delegate uuid.UUID) (*api.GetDelegationResponse, error) {
	resp, err := c.getDelegation.CallUnary(ctx, connect.NewRequest(&api.GetDelegationRequest{
		Owner:    owner,
		Delegate: delegate,
	}))
	if err != nil {
		return nil, convertError(err)
	}
	return resp.Msg, nil
}

// Events returns up to limit journal entries after sequence number after.
func (c *Client) Events(ctx context.Context, after int64, limit int) ([]api.Event, error) {
	resp, err := c.listEvents.CallUnary(ctx, connect.NewRequest(&api.ListEventsRequest{
		After: after,
		Limit: limit,
	}))
	if err != nil {
		return nil, convertError(err)
	}
	return resp.Msg.Events, nil
}

// WaitSettled settles a payment every interval until it is fully settled or
// ctx is done. The client must be authorized to settle the payment.
func (c *Client) WaitSettled(ctx context.Context, index int64, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := c.Settle(ctx, index); err != nil {
			return err
		}
		settled, err := c.IsSettled(ctx, index)
		if err != nil {
			return err
		}
		if settled {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
