package api

import "github.com/google/uuid"

// Payment is the wire form of a payment record.
type Payment struct {
	Index          int64     `json:"index"`
	Creator        uuid.UUID `json:"creator"`
	Receiver       uuid.UUID `json:"receiver"`
	Value          int64     `json:"value"`
	StartTime      int64     `json:"startTime"`
	Duration       int64     `json:"duration"`
	PaidToDate     int64     `json:"paidToDate"`
	IsFork         bool      `json:"isFork"`
	ParentIndex    *int64    `json:"parentIndex,omitempty"`
	ForkedChildren []int64   `json:"forkedChildren"`
	IsForked       bool      `json:"isForked"`
}

type CreatePaymentRequest struct {
	Receiver uuid.UUID `json:"receiver"`
	Value    int64     `json:"value"`
	Duration int64     `json:"duration"`
}

type CreatePaymentResponse struct {
	// Index is -1 for an instant payment.
	Index  int64 `json:"index"`
	Stored bool  `json:"stored"`
}

type SettleRequest struct {
	Index int64 `json:"index"`
}

type SettleResponse struct {
	Credited int64   `json:"credited"`
	Payment  Payment `json:"payment"`
}

type ForkRequest struct {
	Index         int64     `json:"index"`
	ChildReceiver uuid.UUID `json:"childReceiver"`
	Amount        int64     `json:"amount"`
}

type ForkResponse struct {
	ChildIndex int64 `json:"childIndex"`
}

// WithdrawRequest covers all withdrawal shapes. Omitted Target means the
// caller, omitted Amount means the whole balance.
type WithdrawRequest struct {
	Target *uuid.UUID `json:"target,omitempty"`
	Amount *int64     `json:"amount,omitempty"`
	Settle []int64    `json:"settle,omitempty"`
}

type WithdrawResponse struct {
	Target  uuid.UUID `json:"target"`
	Amount  int64     `json:"amount"`
	Settled int64     `json:"settled"`
}

type DelegateRequest struct {
	Delegate uuid.UUID `json:"delegate"`
	Allowed  bool      `json:"allowed"`
}

type DelegateResponse struct{}

type GetPaymentRequest struct {
	Index int64 `json:"index"`
}

type GetPaymentResponse struct {
	Payment Payment `json:"payment"`
}

type IsSettledRequest struct {
	Index int64 `json:"index"`
}

type IsSettledResponse struct {
	Settled bool `json:"settled"`
}

type IsForkedRequest struct {
	Index int64 `json:"index"`
}

type IsForkedResponse struct {
	Forked bool `json:"forked"`
}

// GetBalanceRequest asks for a participant's balance. Omitted means the caller.
type GetBalanceRequest struct {
	Participant *uuid.UUID `json:"participant,omitempty"`
}

type GetBalanceResponse struct {
	Participant uuid.UUID `json:"participant"`
	Balance     int64     `json:"balance"`
}

type GetDelegationRequest struct {
	Owner    uuid.UUID `json:"owner"`
	Delegate uuid.UUID `json:"delegate"`
}

type GetDelegationResponse struct {
	CanFork   bool `json:"canFork"`
	CanSettle bool `json:"canSettle"`
}

type Event struct {
	Seq          int64     `json:"seq"`
	Kind         string    `json:"kind"`
	PaymentIndex int64     `json:"paymentIndex"`
	Participant  uuid.UUID `json:"participant"`
	Counterparty uuid.UUID `json:"counterparty"`
	Amount       int64     `json:"amount"`
	At           int64     `json:"at"`
}

type ListEventsRequest struct {
	After int64 `json:"after"`
	Limit int   `json:"limit"`
}

type ListEventsResponse struct {
	Events []Event `json:"events"`
}
