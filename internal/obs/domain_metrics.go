package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts checkout outcomes.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrderTransitionsTotal counts fulfillment status transitions by outcome.
	OrderTransitionsTotal *prometheus.CounterVec
	// OrdersCancelledTotal counts cancellations by actor role.
	OrdersCancelledTotal *prometheus.CounterVec
	// VoucherRedemptionsTotal counts voucher redemption attempts by outcome.
	VoucherRedemptionsTotal *prometheus.CounterVec
	// RewardsGrantedTotal counts milestone reward vouchers minted, by threshold.
	RewardsGrantedTotal *prometheus.CounterVec
	// StockConflictsTotal counts checkouts rejected for insufficient stock.
	StockConflictsTotal prometheus.Counter
	// CheckoutDuration records end-to-end checkout latency in milliseconds.
	CheckoutDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of checkout attempts by result.",
		}, []string{"result"})
		OrderTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order status transitions by target status and result.",
		}, []string{"to", "result"})
		OrdersCancelledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_cancelled_total",
			Help:      "Count of order cancellations by actor role.",
		}, []string{"actor"})
		VoucherRedemptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_redemptions_total",
			Help:      "Count of voucher redemption attempts by outcome.",
		}, []string{"result"})
		RewardsGrantedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_granted_total",
			Help:      "Count of milestone reward vouchers minted, labelled by threshold.",
		}, []string{"threshold"})
		StockConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Number of checkouts rejected because stock ran out.",
		})
		CheckoutDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_ms",
			Help:      "End-to-end checkout latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		})

		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, OrderTransitionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderTransitionsTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersCancelledTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersCancelledTotal = v
			}
		})
		mustRegisterCollector(reg, VoucherRedemptionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				VoucherRedemptionsTotal = v
			}
		})
		mustRegisterCollector(reg, RewardsGrantedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RewardsGrantedTotal = v
			}
		})
		mustRegisterCollector(reg, StockConflictsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				StockConflictsTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutDuration = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
