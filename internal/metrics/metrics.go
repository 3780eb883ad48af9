// Package metrics defines the Prometheus collectors exported by the ledger server.
package metrics

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "syndicate"

// Value kinds counted by AddValue.
const (
	ValueStreamed  = "streamed"
	ValueInstant   = "instant"
	ValueSettled   = "settled"
	ValueForked    = "forked"
	ValueWithdrawn = "withdrawn"
)

// Metrics holds the ledger collectors.
type Metrics struct {
	operations  *prometheus.CounterVec
	value       *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
		value: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "value_units_total",
			Help:      "Currency units moved by the ledger, by kind.",
		}, []string{"kind"}),
		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
}

// ObserveOperation counts one ledger operation. result is "ok" or an error kind.
func (m *Metrics) ObserveOperation(operation, result string) {
	m.operations.WithLabelValues(operation, result).Inc()
}

// AddValue adds amount units to the counter for kind. Non-positive amounts are ignored.
func (m *Metrics) AddValue(kind string, amount int64) {
	if amount <= 0 {
		return
	}
	m.value.WithLabelValues(kind).Add(float64(amount))
}

// Interceptor returns a Connect interceptor that times every unary RPC.
func (m *Metrics) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			code := "ok"
			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				code = connectErr.Code().String()
			} else if err != nil {
				code = connect.CodeUnknown.String()
			}
			m.rpcDuration.WithLabelValues(req.Spec().Procedure, code).Observe(time.Since(start).Seconds())

			return resp, err
		}
	}
}
