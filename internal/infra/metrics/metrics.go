package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dating"

var (
	// likesRecorded counts like calls by result: new, repeat, rate_limited, daily_limit.
	likesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "likes",
		Name:      "recorded_total",
		Help:      "Like calls by result",
	}, []string{"result"})

	// formations counts match formation outcomes: already_matched, queued, created.
	formations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matches",
		Name:      "formations_total",
		Help:      "Match formation outcomes",
	}, []string{"outcome"})

	promotions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "surfacing",
		Name:      "promoted_total",
		Help:      "Hidden likes promoted to visible",
	})

	// consentResults counts consent calls: recorded, activated, active_chat_limit,
	// credit_required, expired, no_longer_available.
	consentResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consent",
		Name:      "results_total",
		Help:      "Consent call results",
	}, []string{"result"})

	// refunds counts escrow settlements at unmatch: refunded, forfeited, failed.
	refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reversal",
		Name:      "escrow_total",
		Help:      "Escrow settlements on unmatch",
	}, []string{"result"})

	sweepFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweep",
		Name:      "rows_total",
		Help:      "Rows finalized by the hygiene sweep",
	}, []string{"kind"})
)

func RecordLike(result string) {
	likesRecorded.WithLabelValues(result).Inc()
}

func RecordFormation(outcome string) {
	formations.WithLabelValues(outcome).Inc()
}

func RecordPromotions(n int64) {
	if n > 0 {
		promotions.Add(float64(n))
	}
}

func RecordConsent(result string) {
	consentResults.WithLabelValues(result).Inc()
}

func RecordEscrow(result string, n int) {
	if n > 0 {
		refunds.WithLabelValues(result).Add(float64(n))
	}
}

func RecordSweep(kind string, n int64) {
	if n > 0 {
		sweepFinalized.WithLabelValues(kind).Add(float64(n))
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
