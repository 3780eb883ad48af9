package service

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/syndicate/internal/auth"
	"github.com/mmynk/syndicate/internal/middleware"
	"github.com/mmynk/syndicate/pkg/api"
)

// NewLedgerServiceHandler builds an HTTP handler serving every LedgerService
// procedure and returns the path to mount it on.
//
// Mutating procedures require a bearer token; reads accept one optionally.
// The auth interceptor always runs first, so interceptors passed in opts see
// the caller. Requests under the service path that name no procedure are
// treated as bare transfers and rejected.
func NewLedgerServiceHandler(svc *LedgerService, jwtManager *auth.JWTManager, opts ...connect.HandlerOption) (string, http.Handler) {
	required := append([]connect.HandlerOption{
		api.WithCodec(),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager)),
	}, opts...)
	optional := append([]connect.HandlerOption{
		api.WithCodec(),
		connect.WithInterceptors(middleware.OptionalAuth(jwtManager)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(api.CreatePaymentProcedure, connect.NewUnaryHandler(api.CreatePaymentProcedure, svc.CreatePayment, required...))
	mux.Handle(api.SettleProcedure, connect.NewUnaryHandler(api.SettleProcedure, svc.Settle, required...))
	mux.Handle(api.ForkProcedure, connect.NewUnaryHandler(api.ForkProcedure, svc.Fork, required...))
	mux.Handle(api.WithdrawProcedure, connect.NewUnaryHandler(api.WithdrawProcedure, svc.Withdraw, required...))
	mux.Handle(api.DelegateProcedure, connect.NewUnaryHandler(api.DelegateProcedure, svc.Delegate, required...))
	mux.Handle(api.GetPaymentProcedure, connect.NewUnaryHandler(api.GetPaymentProcedure, svc.GetPayment, optional...))
	mux.Handle(api.IsSettledProcedure, connect.NewUnaryHandler(api.IsSettledProcedure, svc.IsSettled, optional...))
	mux.Handle(api.IsForkedProcedure, connect.NewUnaryHandler(api.IsForkedProcedure, svc.IsForked, optional...))
	mux.Handle(api.GetBalanceProcedure, connect.NewUnaryHandler(api.GetBalanceProcedure, svc.GetBalance, optional...))
	mux.Handle(api.GetDelegationProcedure, connect.NewUnaryHandler(api.GetDelegationProcedure, svc.GetDelegation, optional...))
	mux.Handle(api.ListEventsProcedure, connect.NewUnaryHandler(api.ListEventsProcedure, svc.ListEvents, optional...))

	errorWriter := connect.NewErrorWriter(optional...)
	mux.HandleFunc(api.ServicePath, func(w http.ResponseWriter, r *http.Request) {
		err := fail("Receive", svc.receive(r.Context()))
		if !errorWriter.IsSupported(r) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		_ = errorWriter.Write(w, r, err)
	})

	return api.ServicePath, mux
}
