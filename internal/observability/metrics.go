package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry        *prometheus.Registry
	LoanActions     *prometheus.CounterVec
	UpstreamFailure *prometheus.CounterVec
	ProjectionSize  prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		LoanActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftlender",
			Name:      "loan_actions_total",
			Help:      "Loan actions by action and outcome.",
		}, []string{"action", "outcome"}),
		UpstreamFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftlender",
			Name:      "upstream_failures_total",
			Help:      "Failed calls to ancillary HTTP APIs.",
		}, []string{"upstream"}),
		ProjectionSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nftlender",
			Name:      "open_loans",
			Help:      "Open loans in the last projection snapshot.",
		}),
	}
	reg.MustRegister(m.LoanActions, m.UpstreamFailure, m.ProjectionSize)
	return m
}

func (m *Metrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.LoanActions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) ObserveUpstreamFailure(upstream string) {
	if m == nil {
		return
	}
	m.UpstreamFailure.WithLabelValues(upstream).Inc()
}

func (m *Metrics) SetOpenLoans(n int) {
	if m == nil {
		return
	}
	m.ProjectionSize.Set(float64(n))
}
