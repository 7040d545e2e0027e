package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LifecycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnadm_lifecycle_total",
			Help: "Customer lifecycle operations by action and result",
		},
		[]string{"action", "result"}, // create|renew|... , ok|rejected|error
	)

	OutlineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnadm_outline_requests_total",
			Help: "Requests to the Outline management API by operation and status code",
		},
		[]string{"op", "code"}, // code is the HTTP status, "error" on transport failure, "open" when the breaker refused
	)

	SweepCustomersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnadm_sweep_customers_total",
			Help: "Customers seen by the expiry sweep by outcome",
		},
		[]string{"outcome"}, // checked|expired|failed
	)

	AuditSinkRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpnadm_audit_sink_rows_total",
			Help: "Audit events handled by the ClickHouse sink",
		},
		[]string{"result"}, // inserted|skipped|failed
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors once per process.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			LifecycleTotal,
			OutlineRequestsTotal,
			SweepCustomersTotal,
			AuditSinkRowsTotal,
		)
	})
}

// Result maps an error to the "result" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
