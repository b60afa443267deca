// Package metrics 業務指標
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"goflare.io/estore/models/enum"
)

const namespace = "estore"

// Shop 所有方法皆可在 nil 上呼叫
type Shop struct {
	ordersPlaced   prometheus.Counter
	orderAmount    prometheus.Histogram
	statusChanges  *prometheus.CounterVec
	returns        *prometheus.CounterVec
	itemsReturned  prometheus.Counter
	stockMovements *prometheus.CounterVec
	paymentEvents  *prometheus.CounterVec
}

func NewShop(reg prometheus.Registerer) *Shop {
	factory := promauto.With(reg)
	return &Shop{
		ordersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of orders placed.",
		}),
		orderAmount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "amount",
			Help:      "Payment amount of placed orders.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 10),
		}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status transitions by target status.",
		}, []string{"status"}),
		returns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "returns",
			Name:      "total",
			Help:      "Return requests by outcome.",
		}, []string{"outcome"}),
		itemsReturned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "returns",
			Name:      "items_total",
			Help:      "Individual line items returned.",
		}),
		stockMovements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "movements_total",
			Help:      "Stock movements by type and reference.",
		}, []string{"type", "reference"}),
		paymentEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "events_total",
			Help:      "Payment provider events by type and result.",
		}, []string{"type", "result"}),
	}
}

func (m *Shop) OrderPlaced(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.orderAmount.Observe(amount.InexactFloat64())
	m.statusChanges.WithLabelValues(string(enum.OrderStatusPending)).Inc()
}

func (m *Shop) StatusChanged(status enum.OrderStatus) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

func (m *Shop) ReturnRequested() {
	m.returnOutcome("requested")
}

func (m *Shop) ReturnApproved() {
	m.returnOutcome("approved")
}

func (m *Shop) ReturnRejected() {
	m.returnOutcome("rejected")
}

func (m *Shop) ItemReturned() {
	if m == nil {
		return
	}
	m.itemsReturned.Inc()
}

func (m *Shop) StockMoved(t enum.StockMovementType, ref enum.StockMovementReferenceType, n int) {
	if m == nil || n == 0 {
		return
	}
	m.stockMovements.WithLabelValues(string(t), string(ref)).Add(float64(n))
}

func (m *Shop) PaymentEvent(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.paymentEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Shop) returnOutcome(outcome string) {
	if m == nil {
		return
	}
	m.returns.WithLabelValues(outcome).Inc()
}
