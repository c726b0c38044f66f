package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики операций над заказами и складом.
type CheckoutMetrics struct {
	// Счётчики операций
	ordersCreated    prometheus.Counter
	itemsAdded       prometheus.Counter
	itemsDecremented prometheus.Counter
	itemsRemoved     prometheus.Counter
	stockAdjusted    prometheus.Counter

	// Счётчики отказов
	insufficientStock prometheus.Counter
	txRetries         prometheus.Counter
	txRollbacks       prometheus.Counter

	// Гистограмма времени выполнения по операциям
	opDuration *prometheus.HistogramVec
}

// NewCheckoutMetrics создаёт метрики, зарегистрированные в default-регистре.
func NewCheckoutMetrics() *CheckoutMetrics {
	return newCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_orders_created_total",
			Help: "Total number of orders created",
		}),
		itemsAdded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_order_items_added_total",
			Help: "Total number of order item additions",
		}),
		itemsDecremented: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_order_items_decremented_total",
			Help: "Total number of order item decrements",
		}),
		itemsRemoved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_order_items_removed_total",
			Help: "Total number of order item removals",
		}),
		stockAdjusted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_stock_adjustments_total",
			Help: "Total number of administrative stock overrides",
		}),
		insufficientStock: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_insufficient_stock_total",
			Help: "Total number of reservations rejected due to insufficient stock",
		}),
		txRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_tx_retries_total",
			Help: "Total number of transaction retries after transient storage failures",
		}),
		txRollbacks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "pos_tx_rollbacks_total",
			Help: "Total number of rolled back checkout transactions",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "pos_checkout_op_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"op"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *CheckoutMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordItemAdded увеличивает счётчик добавленных позиций.
func (m *CheckoutMetrics) RecordItemAdded() {
	m.itemsAdded.Inc()
}

// RecordItemDecremented увеличивает счётчик декрементов позиций.
func (m *CheckoutMetrics) RecordItemDecremented() {
	m.itemsDecremented.Inc()
}

// RecordItemRemoved увеличивает счётчик снятых позиций.
func (m *CheckoutMetrics) RecordItemRemoved() {
	m.itemsRemoved.Inc()
}

// RecordStockAdjusted увеличивает счётчик административных правок стока.
func (m *CheckoutMetrics) RecordStockAdjusted() {
	m.stockAdjusted.Inc()
}

// RecordInsufficientStock увеличивает счётчик отказов по нехватке остатка.
func (m *CheckoutMetrics) RecordInsufficientStock() {
	m.insufficientStock.Inc()
}

// RecordTxRetry увеличивает счётчик повторов транзакций.
func (m *CheckoutMetrics) RecordTxRetry() {
	m.txRetries.Inc()
}

// RecordTxRollback увеличивает счётчик откатов.
func (m *CheckoutMetrics) RecordTxRollback() {
	m.txRollbacks.Inc()
}

// RecordOpDuration записывает время выполнения операции.
func (m *CheckoutMetrics) RecordOpDuration(op string, duration time.Duration) {
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}
