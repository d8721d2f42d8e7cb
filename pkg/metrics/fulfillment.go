package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records order lifecycle and dispatch activity.
type FulfillmentMetrics struct {
	transitions   *prometheus.CounterVec
	offerOutcomes *prometheus.CounterVec
	walletMoves   *prometheus.CounterVec
	deliveryTime  prometheus.Histogram
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"status"})
	offerOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_offer_outcomes_total",
		Help: "Driver offer terminal outcomes.",
	}, []string{"outcome"})
	walletMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transactions_total",
		Help: "Wallet ledger entries by type.",
	}, []string{"type"})
	deliveryTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_delivery_duration_seconds",
		Help:    "Time from confirmation to delivery in seconds.",
		Buckets: prometheus.ExponentialBuckets(60, 2, 10),
	})
	reg.MustRegister(transitions, offerOutcomes, walletMoves, deliveryTime)
	return &FulfillmentMetrics{
		transitions:   transitions,
		offerOutcomes: offerOutcomes,
		walletMoves:   walletMoves,
		deliveryTime:  deliveryTime,
	}
}

// IncTransition counts one transition into the named status.
func (m *FulfillmentMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncOfferOutcome counts one offer reaching a terminal state.
func (m *FulfillmentMetrics) IncOfferOutcome(outcome string) {
	if m == nil || m.offerOutcomes == nil {
		return
	}
	m.offerOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWalletTransaction counts one ledger entry of the given type.
func (m *FulfillmentMetrics) IncWalletTransaction(txType string) {
	if m == nil || m.walletMoves == nil {
		return
	}
	m.walletMoves.WithLabelValues(normalizeLabel(txType)).Inc()
}

// ObserveDeliveryDuration records confirmation-to-delivery latency.
func (m *FulfillmentMetrics) ObserveDeliveryDuration(d time.Duration) {
	if m == nil || m.deliveryTime == nil {
		return
	}
	m.deliveryTime.Observe(d.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
