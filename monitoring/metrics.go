package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"status"},
	)

	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_purchases_total",
			Help: "Purchase state machine operations by outcome",
		},
		[]string{"operation", "status"},
	)

	verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raffle_gateway_verifications_total",
			Help: "Verification gateway calls by result",
		},
		[]string{"result"},
	)

	verificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raffle_gateway_verification_seconds",
			Help:    "Duration of verification gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	sweptHolds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "raffle_swept_holds_total",
			Help: "Expired holds returned to the pool",
		},
	)
)

func TrackReservation(status string) {
	reservations.WithLabelValues(status).Inc()
}

func TrackPurchase(operation, status string) {
	purchases.WithLabelValues(operation, status).Inc()
}

func TrackVerification(result string, duration time.Duration) {
	verifications.WithLabelValues(result).Inc()
	verificationDuration.Observe(duration.Seconds())
}

func TrackSweptHolds(n int64) {
	sweptHolds.Add(float64(n))
}
