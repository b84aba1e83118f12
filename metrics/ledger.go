// metrics/ledger.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chargeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "point_charge_confirm_total",
			Help: "Payment confirmations by outcome",
		},
		[]string{"outcome"},
	)

	chargeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "point_charge_confirm_duration_ms",
			Help:    "Payment confirmation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"outcome"},
	)

	pointsCredited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_credited_total",
			Help: "Points added to accounts by ledger event",
		},
		[]string{"event"},
	)

	pointsDebited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_debited_total",
			Help: "Points removed from accounts by ledger event",
		},
		[]string{"event"},
	)

	betTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_bet_transitions_total",
			Help: "Bet lifecycle operations by operation and result",
		},
		[]string{"op", "result"},
	)

	lockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_ms",
			Help:    "Time spent acquiring the payment lock in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"acquired"},
	)
)

// RecordCharge records one ConfirmAndCredit call. outcome is "credited",
// "duplicate" or an error class such as "conflict".
func RecordCharge(outcome string, started time.Time) {
	chargeTotal.WithLabelValues(outcome).Inc()
	chargeDuration.WithLabelValues(outcome).Observe(float64(time.Since(started).Milliseconds()))
}

func RecordCredit(event string, amount int64) {
	pointsCredited.WithLabelValues(event).Add(float64(amount))
}

func RecordDebit(event string, amount int64) {
	pointsDebited.WithLabelValues(event).Add(float64(amount))
}

// RecordBet records a bet operation; result should be "success" or an error class.
func RecordBet(op, result string) {
	betTransitions.WithLabelValues(op, result).Inc()
}

func RecordLockWait(acquired bool, started time.Time) {
	label := "false"
	if acquired {
		label = "true"
	}
	lockWait.WithLabelValues(label).Observe(float64(time.Since(started).Milliseconds()))
}
