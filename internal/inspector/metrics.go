package inspector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zulandar/sessionlens/internal/payload"
)

var (
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionlens_reconciliations_total",
		Help: "Session reconciliations by outcome",
	}, []string{"outcome"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sessionlens_reconcile_duration_seconds",
		Help:    "Time to fetch and merge one session",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	degradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionlens_degraded_sections_total",
		Help: "Sub-queries that failed and were shown empty",
	}, []string{"section"})

	fallbackDecodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionlens_fallback_decode_total",
		Help: "Meta-question payload decodes by payload and result",
	}, []string{"payload", "result"})

	saveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessionlens_saves_total",
		Help: "Edit saves by outcome",
	}, []string{"outcome"})

	overrideClearTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessionlens_override_clears_total",
		Help: "Local override patches cleared by an administrator",
	})
)

// recordDecode counts one payload decode.
func recordDecode(baseID string, info payload.DecodeInfo) {
	result := info.Source
	switch {
	case info.Malformed:
		result = "malformed"
	case len(info.MissingParts) > 0:
		result = "gaps"
	case result == "":
		result = "absent"
	}
	fallbackDecodeTotal.WithLabelValues(baseID, result).Inc()
}
