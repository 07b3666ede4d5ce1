package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняла обработка (включая внешние сервисы)
	RequestDuration *prometheus.HistogramVec

	// Traffic: вердикты фьюжна
	DecisionTotal *prometheus.CounterVec

	// Errors: классификация отказов внешних сервисов
	ServiceFailures *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Trace: заполненность буфера рекордера (backpressure)
	TraceBufferFill prometheus.Gauge

	// Persistence: отказы записи трасс (PersistenceFailure никогда не летит в запрос)
	TraceFlushFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ifo_request_duration_seconds",
			Help:    "Histogram of orchestration request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),

		DecisionTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ifo_decisions_total",
			Help: "Total number of fusion decisions by outcome and reason.",
		}, []string{"outcome", "reason"}),

		ServiceFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ifo_service_failures_total",
			Help: "External service failures by service and status class.",
		}, []string{"service", "status"}), // статусы: timeout, transport_error, invalid_response

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "ifo_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"service"}),

		TraceBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ifo_trace_buffer_utilization",
			Help: "Current number of records in trace buffer.",
		}),

		TraceFlushFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ifo_trace_flush_failures_total",
			Help: "Total number of failed trace batch writes.",
		}),
	}
}
