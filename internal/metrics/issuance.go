package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"genkey/internal/certs"
	genkeyerrors "genkey/internal/errors"
)

// IssuanceMetrics holds the instruments fed by InstrumentIssuer.
type IssuanceMetrics struct {
	issued   prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
	last     *issuedCertificateCollector
}

// NewIssuanceMetrics creates the issuance instruments and registers them.
func NewIssuanceMetrics(registerer prometheus.Registerer) (*IssuanceMetrics, error) {
	m := &IssuanceMetrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "genkey_certificates_issued_total",
			Help: "Number of PKCS#12 archives issued",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genkey_certificate_issuance_failures_total",
			Help: "Number of failed issuances grouped by pipeline stage",
		}, []string{"stage"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "genkey_certificate_issuance_duration_seconds",
			Help:    "Time spent issuing one archive, key generation included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "genkey_certificate_issuance_in_flight",
			Help: "Number of issuances currently running",
		}),
		last: newIssuedCertificateCollector(),
	}
	for _, collector := range []prometheus.Collector{m.issued, m.failures, m.duration, m.inFlight, m.last} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FailureStage maps an issuance error onto the stage label.
func FailureStage(err error) string {
	switch {
	case errors.Is(err, genkeyerrors.ErrValidation):
		return "validation"
	case errors.Is(err, genkeyerrors.ErrEncoding):
		return "encoding"
	case errors.Is(err, genkeyerrors.ErrKeyGeneration):
		return "key_generation"
	case errors.Is(err, genkeyerrors.ErrCertificateBuild):
		return "certificate_build"
	case errors.Is(err, genkeyerrors.ErrPackaging):
		return "packaging"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

type instrumentedIssuer struct {
	next    certs.Issuer
	metrics *IssuanceMetrics
	now     func() time.Time
}

// InstrumentIssuer wraps next so that every call updates m.
func InstrumentIssuer(next certs.Issuer, m *IssuanceMetrics) certs.Issuer {
	return &instrumentedIssuer{next: next, metrics: m, now: time.Now}
}

func (i *instrumentedIssuer) Issue(ctx context.Context, req certs.Request) (certs.Archive, error) {
	i.metrics.inFlight.Inc()
	defer i.metrics.inFlight.Dec()

	start := i.now()
	issued, err := i.next.Issue(ctx, req)
	i.metrics.duration.Observe(i.now().Sub(start).Seconds())
	if err != nil {
		i.metrics.failures.WithLabelValues(FailureStage(err)).Inc()
		return issued, err
	}
	i.metrics.issued.Inc()
	i.metrics.last.record(issued)
	return issued, nil
}
