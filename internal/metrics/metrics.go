// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics is safe to use through a nil pointer; every method is then a
// no-op.
type Metrics struct {
	PredictionTotal    *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	ModelReloadTotal   *prometheus.CounterVec
	LoginTotal         *prometheus.CounterVec
	AuditWriteErrors   prometheus.Counter
	UploadStoreErrors  prometheus.Counter

	registry *prometheus.Registry
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PredictionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oncoscan_predictions_total",
			Help: "Prediction requests partitioned by backend and outcome.",
		}, []string{"backend", "outcome"}),
		PredictionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oncoscan_prediction_duration_seconds",
			Help:    "Time from receiving an upload to the model result, per prediction. Includes upload storage and decoding.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"backend"}),
		ModelReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oncoscan_model_reloads_total",
			Help: "Model backend reloads partitioned by outcome.",
		}, []string{"outcome"}),
		LoginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oncoscan_logins_total",
			Help: "Login attempts partitioned by outcome.",
		}, []string{"outcome"}),
		AuditWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oncoscan_audit_write_errors_total",
			Help: "Prediction records that could not be written to the audit log.",
		}),
		UploadStoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oncoscan_upload_store_errors_total",
			Help: "Uploads that could not be persisted.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.PredictionTotal, m.PredictionDuration, m.ModelReloadTotal, m.LoginTotal,
		m.AuditWriteErrors, m.UploadStoreErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePrediction(backend, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PredictionTotal.WithLabelValues(backend, outcome).Inc()
	if outcome == OutcomeOK {
		m.PredictionDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveReload(ok bool) {
	if m == nil {
		return
	}
	m.ModelReloadTotal.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.LoginTotal.WithLabelValues(OutcomeOK).Inc()
		return
	}
	m.LoginTotal.WithLabelValues(OutcomeRejected).Inc()
}

func (m *Metrics) AuditWriteFailed() {
	if m != nil {
		m.AuditWriteErrors.Inc()
	}
}

func (m *Metrics) UploadStoreFailed() {
	if m != nil {
		m.UploadStoreErrors.Inc()
	}
}

func outcome(ok bool) string {
	if ok {
		return OutcomeOK
	}
	return OutcomeError
}
