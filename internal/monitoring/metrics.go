package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_created_total",
			Help: "Transactions created, by initial status",
		},
		[]string{"status"},
	)

	transactionsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_finalized_total",
			Help: "Transactions moved to a final status",
		},
		[]string{"status"},
	)

	sweepsRun = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeps_run_total",
			Help: "Expiration sweeps completed",
		},
	)

	sweepExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_expirations_total",
			Help: "Rows processed by the expiration sweeper",
		},
		[]string{"kind"},
	)
)

func PurchaseCreated(status string) {
	purchasesCreated.WithLabelValues(status).Inc()
}

func TransactionFinalized(status string) {
	transactionsFinalized.WithLabelValues(status).Inc()
}

func SweepCompleted(expired, canceled, pointsExpired int) {
	sweepsRun.Inc()
	sweepExpirations.WithLabelValues("payment_expired").Add(float64(expired))
	sweepExpirations.WithLabelValues("decision_canceled").Add(float64(canceled))
	sweepExpirations.WithLabelValues("points_expired").Add(float64(pointsExpired))
}
