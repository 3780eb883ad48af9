package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/syndicate/internal/auth"
	"github.com/mmynk/syndicate/internal/ledger"
	"github.com/mmynk/syndicate/internal/metrics"
	"github.com/mmynk/syndicate/internal/middleware"
	"github.com/mmynk/syndicate/internal/storage"
	"github.com/mmynk/syndicate/pkg/api"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// LedgerService implements the Connect LedgerService.
//
// Requests are serialized: each one holds the service lock for its whole
// duration and runs inside a single store transaction, so every ledger
// operation is atomic and observes the effects of all earlier ones. The lock
// is also held while a withdrawal's payout runs, so a payout receiver must not
// call back into the service before answering.
type LedgerService struct {
	mu      sync.Mutex
	store   storage.Store
	clock   func() time.Time
	payout  ledger.Transferer
	metrics *metrics.Metrics
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithClock sets the time source. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *LedgerService) { s.clock = clock }
}

// WithTransferer sets where withdrawals are paid out.
func WithTransferer(t ledger.Transferer) Option {
	return func(s *LedgerService) { s.payout = t }
}

// WithMetrics sets the collectors operations are recorded in.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// NewLedgerService creates a new LedgerService with the given storage backend.
func NewLedgerService(store storage.Store, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// run executes fn against a Ledger bound to a fresh transaction. The
// transaction commits only if fn returns nil.
func (s *LedgerService) run(ctx context.Context, operation string, fn func(l *ledger.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Tx(ctx, func(st storage.State) error {
		return fn(ledger.New(st,
			ledger.WithClock(s.clock),
			ledger.WithTransferer(s.payout),
		))
	})
	s.metrics.ObserveOperation(operation, result(err))
	return err
}

// fail logs a failed operation and converts its error for the wire.
func fail(procedure string, err error) error {
	if errorKind(err) != "" {
		slog.Warn(procedure+" rejected", "error", err)
	} else {
		slog.Error(procedure+" failed", "error", err)
	}
	return toConnectError(err)
}

// caller returns the authenticated participant.
func caller(ctx context.Context) (uuid.UUID, error) {
	participant, ok := middleware.GetParticipant(ctx)
	if !ok {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return participant, nil
}

// CreatePayment streams the attached value to the receiver. The caller is the creator.
func (s *LedgerService) CreatePayment(ctx context.Context, req *connect.Request[api.CreatePaymentRequest]) (*connect.Response[api.CreatePaymentResponse], error) {
	creator, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreatePayment request received",
		"creator", creator,
		"receiver", req.Msg.Receiver,
		"value", req.Msg.Value,
		"duration", req.Msg.Duration,
	)

	var index int64
	var stored bool
	err = s.run(ctx, "create_payment", func(l *ledger.Ledger) error {
		var err error
		index, stored, err = l.CreatePayment(ctx, creator, req.Msg.Receiver, req.Msg.Value, req.Msg.Duration)
		return err
	})
	if err != nil {
		return nil, fail("CreatePayment", err)
	}

	if stored {
		s.metrics.AddValue(metrics.ValueStreamed, req.Msg.Value)
	} else {
		s.metrics.AddValue(metrics.ValueInstant, req.Msg.Value)
	}

	return connect.NewResponse(&api.CreatePaymentResponse{
		Index:  index,
		Stored: stored,
	}), nil
}

// Settle credits the receiver with everything vested so far.
func (s *LedgerService) Settle(ctx context.Context, req *connect.Request[api.SettleRequest]) (*connect.Response[api.SettleResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Settle request received", "caller", who, "index", req.Msg.Index)

	resp := &api.SettleResponse{}
	err = s.run(ctx, "settle", func(l *ledger.Ledger) error {
		credited, err := l.Settle(ctx, req.Msg.Index, who)
		if err != nil {
			return err
		}
		p, err := l.Payment(ctx, req.Msg.Index)
		if err != nil {
			return err
		}
		resp.Credited = credited
		resp.Payment = toAPIPayment(p)
		return nil
	})
	if err != nil {
		return nil, fail("Settle", err)
	}

	s.metrics.AddValue(metrics.ValueSettled, resp.Credited)
	return connect.NewResponse(resp), nil
}

// Fork carves amount out of a payment's unvested remainder into a new payment.
func (s *LedgerService) Fork(ctx context.Context, req *connect.Request[api.ForkRequest]) (*connect.Response[api.ForkResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Fork request received",
		"caller", who,
		"index", req.Msg.Index,
		"child_receiver", req.Msg.ChildReceiver,
		"amount", req.Msg.Amount,
	)

	var child int64
	err = s.run(ctx, "fork", func(l *ledger.Ledger) error {
		var err error
		child, err = l.Fork(ctx, req.Msg.Index, req.Msg.ChildReceiver, req.Msg.Amount, who)
		return err
	})
	if err != nil {
		return nil, fail("Fork", err)
	}

	s.metrics.AddValue(metrics.ValueForked, req.Msg.Amount)
	slog.Info("Payment forked", "parent", req.Msg.Index, "child", child)
	return connect.NewResponse(&api.ForkResponse{ChildIndex: child}), nil
}

// Withdraw pays out of the caller's balance.
func (s *LedgerService) Withdraw(ctx context.Context, req *connect.Request[api.WithdrawRequest]) (*connect.Response[api.WithdrawResponse], error) {
	who, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Withdraw request received",
		"caller", who,
		"target", req.Msg.Target,
		"amount", req.Msg.Amount,
		"settle", req.Msg.Settle,
	)

	var w ledger.Withdrawal
	err = s.run(ctx, "withdraw", func(l *ledger.Ledger) error {
		var err error
		w, err = l.Withdraw(ctx, who, ledger.WithdrawRequest{
			Target: req.Msg.Target,
			Amount: req.Msg.Amount,
			Settle: req.Msg.Settle,
		})
		return err
	})
	if err != nil {
		return nil, fail("Withdraw", err)
	}

	s.metrics.AddValue(metrics.ValueSettled, w.Settled)
	s.metrics.AddValue(metrics.ValueWithdrawn, w.Amount)
	return connect.NewResponse(&api.WithdrawResponse{
		Target:  w.Target,
		Amount:  w.Amount,
		Settled: w.Settled,
	}), nil
}

// Delegate grants or revokes another participant's authority over the
// caller's payments.
func (s *LedgerService) Delegate(ctx context.Context, req *connect.Request[api.DelegateRequest]) (*connect.Response[api.DelegateResponse], error) {
	owner, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Delegate request received", "owner", owner, "delegate", req.Msg.Delegate, "allowed", req.Msg.Allowed)

	err = s.run(ctx, "delegate", func(l *ledger.Ledger) error {
		return l.Delegate(ctx, owner, req.Msg.Delegate, req.Msg.Allowed)
	})
	if err != nil {
		return nil, fail("Delegate", err)
	}
	return connect.NewResponse(&api.DelegateResponse{}), nil
}

// GetPayment returns a payment record.
func (s *LedgerService) GetPayment(ctx context.Context, req *connect.Request[api.GetPaymentRequest]) (*connect.Response[api.GetPaymentResponse], error) {
	slog.Debug("GetPayment request received", "index", req.Msg.Index)

	resp := &api.GetPaymentResponse{}
	err := s.run(ctx, "get_payment", func(l *ledger.Ledger) error {
		p, err := l.Payment(ctx, req.Msg.Index)
		if err != nil {
			return err
		}
		resp.Payment = toAPIPayment(p)
		return nil
	})
	if err != nil {
		return nil, fail("GetPayment", err)
	}
	return connect.NewResponse(resp), nil
}

// IsSettled reports whether a payment has vested and been settled in full.
func (s *LedgerService) IsSettled(ctx context.Context, req *connect.Request[api.IsSettledRequest]) (*connect.Response[api.IsSettledResponse], error) {
	var settled bool
	err := s.run(ctx, "is_settled", func(l *ledger.Ledger) error {
		var err error
		settled, err = l.IsSettled(ctx, req.Msg.Index)
		return err
	})
	if err != nil {
		return nil, fail("IsSettled", err)
	}
	return connect.NewResponse(&api.IsSettledResponse{Settled: settled}), nil
}

// IsForked reports whether a payment has forked children.
func (s *LedgerService) IsForked(ctx context.Context, req *connect.Request[api.IsForkedRequest]) (*connect.Response[api.IsForkedResponse], error) {
	var forked bool
	err := s.run(ctx, "is_forked", func(l *ledger.Ledger) error {
		var err error
		forked, err = l.IsForked(ctx, req.Msg.Index)
		return err
	})
	if err != nil {
		return nil, fail("IsForked", err)
	}
	return connect.NewResponse(&api.IsForkedResponse{Forked: forked}), nil
}

// GetBalance returns a participant's withdrawable balance, the caller's by default.
func (s *LedgerService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	participant, _ := middleware.GetParticipant(ctx)
	if req.Msg.Participant != nil {
		participant = *req.Msg.Participant
	}
	if participant == uuid.Nil {
		return nil, fail("GetBalance", fmt.Errorf("participant: %w", ledger.ErrInvalidParticipant))
	}

	var balance int64
	err := s.run(ctx, "get_balance", func(l *ledger.Ledger) error {
		var err error
		balance, err = l.Balance(ctx, participant)
		return err
	})
	if err != nil {
		return nil, fail("GetBalance", err)
	}
	return connect.NewResponse(&api.GetBalanceResponse{
		Participant: participant,
		Balance:     balance,
	}), nil
}

// GetDelegation returns what an owner has granted a delegate.
func (s *LedgerService) GetDelegation(ctx context.Context, req *connect.Request[api.GetDelegationRequest]) (*connect.Response[api.GetDelegationResponse], error) {
	resp := &api.GetDelegationResponse{}
	err := s.run(ctx, "get_delegation", func(l *ledger.Ledger) error {
		d, err := l.Delegation(ctx, req.Msg.Owner, req.Msg.Delegate)
		if err != nil {
			return err
		}
		resp.CanFork = d.CanFork
		resp.CanSettle = d.CanSettle
		return nil
	})
	if err != nil {
		return nil, fail("GetDelegation", err)
	}
	return connect.NewResponse(resp), nil
}

// ListEvents pages through the ledger journal in sequence order.
func (s *LedgerService) ListEvents(ctx context.Context, req *connect.Request[api.ListEventsRequest]) (*connect.Response[api.ListEventsResponse], error) {
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	resp := &api.ListEventsResponse{}
	err := s.run(ctx, "list_events", func(l *ledger.Ledger) error {
		events, err := l.Events(ctx, req.Msg.After, limit)
		if err != nil {
			return err
		}
		resp.Events = toAPIEvents(events)
		return nil
	})
	if err != nil {
		return nil, fail("ListEvents", err)
	}
	return connect.NewResponse(resp), nil
}

// receive handles value posted to the service without naming a procedure.
func (s *LedgerService) receive(ctx context.Context) error {
	from, _ := middleware.GetParticipant(ctx)
	return s.run(ctx, "receive", func(l *ledger.Ledger) error {
		return l.Receive(ctx, from, 0)
	})
}
