package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prom.CounterOpts{
		Name: "clipvault_lifecycle_operations_total",
		Help: "Lifecycle operations by name and outcome.",
	}, []string{"op", "status"})

	expiredShareLinks = promauto.NewGauge(prom.GaugeOpts{
		Name: "clipvault_expired_share_links",
		Help: "Share links currently past their expiry.",
	})
)

// ObserveOperation counts one completed lifecycle operation.
func ObserveOperation(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(op, status).Inc()
}

// SetExpiredShareLinks records the current expired-link count.
func SetExpiredShareLinks(n float64) {
	expiredShareLinks.Set(n)
}
