package vault

import (
	"time"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var (
	readsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gccs",
		Subsystem: "vault",
		Name:      "reads_total",
		Help:      "Vault secret reads, by outcome",
	}, []string{"outcome"})

	readDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gccs",
		Subsystem: "vault",
		Name:      "read_duration_seconds",
		Help:      "Vault secret read latency, by outcome",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

func observeRead(started time.Time, payload backend.Payload, err error) {
	outcome := outcomeOf(payload, err)
	readsCounter.WithLabelValues(outcome).Inc()
	readDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

func outcomeOf(payload backend.Payload, err error) string {
	switch {
	case err != nil:
		return outcomeError
	case payload.Found():
		return outcomeFound
	default:
		return outcomeNotFound
	}
}
