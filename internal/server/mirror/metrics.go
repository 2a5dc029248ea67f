package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	pending        prometheus.Gauge
	succeeded      prometheus.Counter
	failedAttempts prometheus.Counter
	abandoned      prometheus.Counter
	dropped        prometheus.Counter
}

// NewMetrics registers the mirror collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "secureshare",
			Subsystem: "mirror",
			Name:      "pending",
			Help:      "Audit records queued or in flight to the external ledger.",
		}),
		succeeded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "secureshare",
			Subsystem: "mirror",
			Name:      "succeeded_total",
			Help:      "Audit records confirmed by the external ledger.",
		}),
		failedAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "secureshare",
			Subsystem: "mirror",
			Name:      "failed_attempts_total",
			Help:      "Failed external ledger write attempts.",
		}),
		abandoned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "secureshare",
			Subsystem: "mirror",
			Name:      "abandoned_total",
			Help:      "Audit records given up on after the final attempt.",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "secureshare",
			Subsystem: "mirror",
			Name:      "dropped_total",
			Help:      "Enqueue calls rejected because the queue was full; the sweeper retries them.",
		}),
	}
}
