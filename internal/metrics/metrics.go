// Package metrics counts what an export run did. The collectors live on a
// private registry so a run can be pushed to a Prometheus Pushgateway when it
// ends; the process is a batch job and is never scraped.
package metrics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "metrics")

// Invoice results.
const (
	ResultExported = "exported"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"
)

// Transmission results.
const (
	TransmitSent    = "sent"
	TransmitFailed  = "failed"
	TransmitSkipped = "skipped"
)

// Metrics holds the export collectors.
type Metrics struct {
	Registry *prometheus.Registry

	Invoices           *prometheus.CounterVec
	ValidationFailures prometheus.Counter
	Transmissions      *prometheus.CounterVec
	ExportDuration     prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sapexport_invoices_total",
			Help: "Invoices processed, by module and result.",
		}, []string{"module", "result"}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sapexport_validation_failures_total",
			Help: "Generated documents rejected by the validator.",
		}),
		Transmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sapexport_transmissions_total",
			Help: "Documents handed to the transmitter, by result.",
		}, []string{"result"}),
		ExportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sapexport_export_duration_seconds",
			Help:    "Time to serialize, validate, write and transmit one invoice.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.Registry.MustRegister(m.Invoices, m.ValidationFailures, m.Transmissions, m.ExportDuration)
	return m
}

// ObserveInvoice records the result of one invoice and how long it took.
func (m *Metrics) ObserveInvoice(module, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Invoices.WithLabelValues(module, result).Inc()
	if result == ResultInvalid {
		m.ValidationFailures.Inc()
	}
	m.ExportDuration.Observe(d.Seconds())
}

// ObserveTransmission records a transmission result.
func (m *Metrics) ObserveTransmission(result string) {
	if m == nil {
		return
	}
	m.Transmissions.WithLabelValues(result).Inc()
}

// Push sends the registry to the Pushgateway at url under job. An empty url
// is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx)
	if err != nil {
		return errors.Wrap(err, "push metrics")
	}
	logger.WithFields(logrus.Fields{"url": url, "job": job}).Debug("Pushed metrics")
	return nil
}
