package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mmynk/syndicate/client"
	"github.com/mmynk/syndicate/internal/auth"
	"github.com/mmynk/syndicate/internal/ledger"
	"github.com/mmynk/syndicate/internal/metrics"
	"github.com/mmynk/syndicate/internal/middleware"
	"github.com/mmynk/syndicate/internal/storage/sqlite"
	"github.com/mmynk/syndicate/pkg/api"
)

// testClock is a manually advanced time source shared with the server goroutines.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testPayout records transfers and fails them while err is set.
type testPayout struct {
	mu        sync.Mutex
	err       error
	transfers map[uuid.UUID]int64
}

func (p *testPayout) Transfer(_ context.Context, to uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.transfers[to] += amount
	return nil
}

func (p *testPayout) paid(to uuid.UUID) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transfers[to]
}

type testEnv struct {
	server   *httptest.Server
	jwt      *auth.JWTManager
	clock    *testClock
	payout   *testPayout
	registry *prometheus.Registry
}

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()

	store, err := sqlite.New(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to create store: %v", err)
	}

	env := &testEnv{
		jwt:      auth.NewJWTManager("test-secret", time.Hour),
		clock:    &testClock{now: time.Unix(1_700_000_000, 0)},
		payout:   &testPayout{transfers: map[uuid.UUID]int64{}},
		registry: prometheus.NewRegistry(),
	}
	m := metrics.New(env.registry)

	svc := NewLedgerService(store,
		WithClock(env.clock.Now),
		WithTransferer(env.payout),
		WithMetrics(m),
	)
	path, handler := NewLedgerServiceHandler(svc, env.jwt,
		connect.WithInterceptors(middleware.LoggingInterceptor(), m.Interceptor()),
	)

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	env.server = httptest.NewServer(mux)

	t.Cleanup(func() {
		env.server.Close()
		store.Close()
		os.Remove(tmpFile.Name())
	})
	return env
}

// clientFor returns a client authenticated as participant.
func (e *testEnv) clientFor(t *testing.T, participant uuid.UUID) *client.Client {
	t.Helper()
	token, err := e.jwt.Generate(participant)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return client.New(http.DefaultClient, e.server.URL, client.WithToken(token))
}

func (e *testEnv) anonymous() *client.Client {
	return client.New(http.DefaultClient, e.server.URL)
}

func TestCreatePayment_Instant(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	index, stored, err := env.clientFor(t, alice).CreatePayment(ctx, bob, 100, 0)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if stored || index != -1 {
		t.Errorf("got index %d stored %v, want -1 false", index, stored)
	}

	balance, err := env.clientFor(t, bob).Balance(ctx, uuid.Nil)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
}

func TestCreatePayment_Validation(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice := env.clientFor(t, uuid.New())

	_, _, err := alice.CreatePayment(ctx, uuid.New(), 0, 10)
	if !errors.Is(err, ledger.ErrZeroValue) {
		t.Errorf("expected ErrZeroValue, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}

	_, _, err = alice.CreatePayment(ctx, uuid.New(), 10, -1)
	if !errors.Is(err, ledger.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestAuthentication(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	bob := uuid.New()

	anon := env.anonymous()
	if _, _, err := anon.CreatePayment(ctx, bob, 100, 10); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("anonymous CreatePayment: expected Unauthenticated, got %v", err)
	}

	forged := client.New(http.DefaultClient, env.server.URL, client.WithToken("not-a-token"))
	if _, _, err := forged.CreatePayment(ctx, bob, 100, 10); connect.CodeOf(err) != connect.CodeUnauthenticated {
		t.Errorf("forged token: expected Unauthenticated, got %v", err)
	}

	index, _, err := env.clientFor(t, uuid.New()).CreatePayment(ctx, bob, 100, 10)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	// Reads work without a token.
	p, err := anon.Payment(ctx, index)
	if err != nil {
		t.Fatalf("anonymous Payment failed: %v", err)
	}
	if p.Receiver != bob || p.Value != 100 {
		t.Errorf("payment = %+v", p)
	}
	if _, err := anon.Balance(ctx, uuid.Nil); !errors.Is(err, ledger.ErrInvalidParticipant) {
		t.Errorf("anonymous own balance: expected ErrInvalidParticipant, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	bobClient := env.clientFor(t, bob)

	index, stored, err := env.clientFor(t, alice).CreatePayment(ctx, bob, 2491, 30)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if !stored || index != 0 {
		t.Fatalf("got index %d stored %v, want 0 true", index, stored)
	}

	env.clock.Advance(10 * time.Second)
	credited, p, err := bobClient.Settle(ctx, index)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if credited != 830 || p.PaidToDate != 830 {
		t.Errorf("credited %d paidToDate %d, want 830", credited, p.PaidToDate)
	}

	// Only the receiver or a delegate may settle.
	if _, _, err := env.clientFor(t, alice).Settle(ctx, index); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	settled, err := bobClient.IsSettled(ctx, index)
	if err != nil {
		t.Fatalf("IsSettled failed: %v", err)
	}
	if settled {
		t.Error("IsSettled = true before the end")
	}

	env.clock.Advance(30 * time.Second)
	credited, p, err = bobClient.Settle(ctx, index)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if credited != 2491-830 || p.PaidToDate != 2491 {
		t.Errorf("credited %d paidToDate %d, want %d and 2491", credited, p.PaidToDate, 2491-830)
	}
	if settled, _ := bobClient.IsSettled(ctx, index); !settled {
		t.Error("IsSettled = false after full settlement")
	}

	_, _, err = bobClient.Settle(ctx, 7)
	if !errors.Is(err, ledger.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeOutOfRange {
		t.Errorf("code = %v, want OutOfRange", connect.CodeOf(err))
	}
}

func TestForkAndDelegation(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob, carol, dave := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	bobClient := env.clientFor(t, bob)
	carolClient := env.clientFor(t, carol)

	index, _, err := env.clientFor(t, alice).CreatePayment(ctx, bob, 5000, 100)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	env.clock.Advance(5 * time.Second)

	if _, err := carolClient.Fork(ctx, index, dave, 5); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if p, _ := carolClient.Payment(ctx, index); p.PaidToDate != 0 || p.IsForked {
		t.Errorf("unauthorized fork changed the payment: %+v", p)
	}

	if err := bobClient.Delegate(ctx, carol, true); err != nil {
		t.Fatalf("Delegate failed: %v", err)
	}
	d, err := carolClient.Delegation(ctx, bob, carol)
	if err != nil {
		t.Fatalf("Delegation failed: %v", err)
	}
	if !d.CanFork || !d.CanSettle {
		t.Errorf("delegation = %+v, want both permissions", d)
	}

	child, err := carolClient.Fork(ctx, index, dave, 5)
	if err != nil {
		t.Fatalf("Fork failed: %v", err)
	}
	if child != 1 {
		t.Errorf("child index = %d, want 1", child)
	}

	parent, err := carolClient.Payment(ctx, index)
	if err != nil {
		t.Fatalf("Payment failed: %v", err)
	}
	if parent.Value != 4995 || parent.PaidToDate != 250 || !parent.IsForked {
		t.Errorf("parent = %+v", parent)
	}
	if len(parent.ForkedChildren) != 1 || parent.ForkedChildren[0] != child {
		t.Errorf("forked children = %v", parent.ForkedChildren)
	}

	c, err := carolClient.Payment(ctx, child)
	if err != nil {
		t.Fatalf("Payment failed: %v", err)
	}
	if c.Receiver != dave || c.Value != 5 || !c.IsFork || c.ParentIndex == nil || *c.ParentIndex != index || c.Duration != 95 {
		t.Errorf("child = %+v", c)
	}
	if forked, _ := carolClient.IsForked(ctx, child); forked {
		t.Error("child IsForked = true")
	}

	// Asking for more than the unvested remainder fails.
	_, err = bobClient.Fork(ctx, index, dave, 4746)
	if !errors.Is(err, ledger.ErrInsufficientRemainder) {
		t.Errorf("expected ErrInsufficientRemainder, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", connect.CodeOf(err))
	}

	_, err = bobClient.Fork(ctx, index, dave, 0)
	if !errors.Is(err, ledger.ErrZeroValue) || !errors.Is(err, ledger.ErrInsufficientRemainder) {
		t.Errorf("zero fork: expected ErrZeroValue and ErrInsufficientRemainder, got %v", err)
	}

	if err := bobClient.Delegate(ctx, carol, false); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := carolClient.Fork(ctx, index, dave, 5); !errors.Is(err, ledger.ErrUnauthorized) {
		t.Errorf("after revoke: expected ErrUnauthorized, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob, erin := uuid.New(), uuid.New(), uuid.New()
	bobClient := env.clientFor(t, bob)

	index, _, err := env.clientFor(t, alice).CreatePayment(ctx, bob, 5000, 100)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	env.clock.Advance(5 * time.Second)
	if _, _, err := bobClient.Settle(ctx, index); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	tooMuch := int64(300)
	_, err = bobClient.Withdraw(ctx, &api.WithdrawRequest{Amount: &tooMuch})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	amount, err := bobClient.WithdrawAll(ctx)
	if err != nil {
		t.Fatalf("WithdrawAll failed: %v", err)
	}
	if amount != 250 || env.payout.paid(bob) != 250 {
		t.Errorf("withdrew %d, paid out %d, want 250", amount, env.payout.paid(bob))
	}
	if balance, _ := bobClient.Balance(ctx, uuid.Nil); balance != 0 {
		t.Errorf("balance after withdraw = %d, want 0", balance)
	}

	// Settle and withdraw to a third party in one call.
	env.clock.Advance(5 * time.Second)
	resp, err := bobClient.Withdraw(ctx, &api.WithdrawRequest{Target: &erin, Settle: []int64{index}})
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if resp.Target != erin || resp.Amount != 250 || resp.Settled != 250 {
		t.Errorf("withdrawal = %+v, want 250 settled and sent to erin", resp)
	}
	if env.payout.paid(erin) != 250 {
		t.Errorf("erin paid %d, want 250", env.payout.paid(erin))
	}

	_, err = bobClient.Withdraw(ctx, &api.WithdrawRequest{Settle: []int64{index, 99}})
	if !errors.Is(err, ledger.ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestWithdraw_TransferFailureRollsBack(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	bob := uuid.New()
	bobClient := env.clientFor(t, bob)

	if _, _, err := env.clientFor(t, uuid.New()).CreatePayment(ctx, bob, 100, 0); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	env.payout.mu.Lock()
	env.payout.err = errors.New("bank offline")
	env.payout.mu.Unlock()

	_, err := bobClient.WithdrawAll(ctx)
	if !errors.Is(err, ledger.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if connect.CodeOf(err) != connect.CodeUnavailable {
		t.Errorf("code = %v, want Unavailable", connect.CodeOf(err))
	}
	if balance, _ := bobClient.Balance(ctx, uuid.Nil); balance != 100 {
		t.Errorf("balance after failed transfer = %d, want 100", balance)
	}

	events, err := bobClient.Events(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	for _, e := range events {
		if e.Kind == "withdrawn" {
			t.Errorf("failed withdrawal was journaled: %+v", e)
		}
	}
}

func TestBareTransferRejected(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Post(env.server.URL+api.ServicePath, "application/json", strings.NewReader(`{"value": 10}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if got := resp.Header.Get(api.ErrorKindKey); got != api.KindBareTransfer {
		t.Errorf("%s = %q, want %q", api.ErrorKindKey, got, api.KindBareTransfer)
	}
}

func TestListEvents(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	bobClient := env.clientFor(t, bob)

	index, _, err := env.clientFor(t, alice).CreatePayment(ctx, bob, 100, 10)
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	env.clock.Advance(10 * time.Second)
	if _, err := bobClient.Withdraw(ctx, &api.WithdrawRequest{Settle: []int64{index}}); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	events, err := bobClient.Events(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	var kinds []string
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []string{"payment_created", "settled", "withdrawn"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("event kinds = %v, want %v", kinds, want)
	}

	page, err := bobClient.Events(ctx, events[0].Seq, 1)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(page) != 1 || page[0].Seq != events[1].Seq {
		t.Errorf("page = %+v, want the second event", page)
	}

	// The journal is plain JSON on the wire.
	body, _ := json.Marshal(events[0])
	if !strings.Contains(string(body), `"kind":"payment_created"`) {
		t.Errorf("event JSON = %s", body)
	}
}

func TestMetricsRecorded(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	if _, _, err := env.clientFor(t, uuid.New()).CreatePayment(ctx, uuid.New(), 100, 10); err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if _, err := env.anonymous().Payment(ctx, 5); err == nil {
		t.Fatal("expected an error for a missing payment")
	}

	n, err := testutil.GatherAndCount(env.registry, "syndicate_operations_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("operation series = %d, want 2", n)
	}

	n, err = testutil.GatherAndCount(env.registry, "syndicate_value_units_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("value series = %d, want 1", n)
	}
}

func TestWithdraw_CancelledAfterPayoutKeepsDebit(t *testing.T) {
	store, err := sqlite.New(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	alice, bob := uuid.New(), uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var paidOut int64
	svc := NewLedgerService(store, WithTransferer(ledger.TransferFunc(
		func(_ context.Context, _ uuid.UUID, amount int64) error {
			paidOut += amount
			cancel()
			return nil
		},
	)))

	_, err = svc.CreatePayment(middleware.WithParticipant(context.Background(), alice),
		connect.NewRequest(&api.CreatePaymentRequest{Receiver: bob, Value: 100}))
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	resp, err := svc.Withdraw(middleware.WithParticipant(ctx, bob), connect.NewRequest(&api.WithdrawRequest{}))
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if resp.Msg.Amount != 100 || paidOut != 100 {
		t.Fatalf("withdrew %d, paid out %d, want 100", resp.Msg.Amount, paidOut)
	}

	balance, err := svc.GetBalance(context.Background(), connect.NewRequest(&api.GetBalanceRequest{Participant: &bob}))
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Msg.Balance != 0 {
		t.Errorf("balance after paid-out withdrawal = %d, want 0", balance.Msg.Balance)
	}

	// The balance cannot be withdrawn a second time.
	amount := int64(100)
	_, err = svc.Withdraw(middleware.WithParticipant(context.Background(), bob),
		connect.NewRequest(&api.WithdrawRequest{Amount: &amount}))
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}
