package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the ledger's Prometheus metrics and implements
// usecase.MetricsRecorder.
type Metrics struct {
	ChargesCommitted  prometheus.Counter
	ChargesDeclined   prometheus.Counter
	PaymentsCommitted prometheus.Counter
	AccountsOpened    prometheus.Counter
	ChargeAmount      prometheus.Histogram
	PaymentAmount     prometheus.Histogram
}

// New creates and registers all ledger metrics.
func New() *Metrics {
	return &Metrics{
		ChargesCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditledger_charges_committed_total",
			Help: "Total number of committed charge transactions",
		}),
		ChargesDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditledger_charges_declined_total",
			Help: "Total number of charges declined for insufficient credit",
		}),
		PaymentsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditledger_payments_committed_total",
			Help: "Total number of committed payment transactions",
		}),
		AccountsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "creditledger_accounts_opened_total",
			Help: "Total number of store-credit accounts opened",
		}),
		ChargeAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditledger_charge_amount",
			Help:    "Charge amounts",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000},
		}),
		PaymentAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditledger_payment_amount",
			Help:    "Applied payment amounts",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000},
		}),
	}
}

// ChargeCommitted records a committed charge.
func (m *Metrics) ChargeCommitted(amount decimal.Decimal) {
	m.ChargesCommitted.Inc()
	m.ChargeAmount.Observe(amount.InexactFloat64())
}

// ChargeDeclined records a credit-limit decline.
func (m *Metrics) ChargeDeclined() {
	m.ChargesDeclined.Inc()
}

// PaymentCommitted records a committed payment.
func (m *Metrics) PaymentCommitted(amount decimal.Decimal) {
	m.PaymentsCommitted.Inc()
	m.PaymentAmount.Observe(amount.InexactFloat64())
}

// AccountOpened records an account creation.
func (m *Metrics) AccountOpened() {
	m.AccountsOpened.Inc()
}
