package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"genkey/internal/certs"
)

var (
	lastIssuanceDesc  = prometheus.NewDesc("genkey_last_issuance_timestamp_seconds", "Timestamp of the last successful issuance", nil, nil)
	lastNotAfterDesc  = prometheus.NewDesc("genkey_last_issued_certificate_expiry_timestamp_seconds", "Expiration timestamp of the last issued certificate", nil, nil)
	lastExpiresInDesc = prometheus.NewDesc("genkey_last_issued_certificate_expires_in_seconds", "Seconds until the last issued certificate expires (zero when expired)", nil, nil)
)

// issuedCertificateCollector reports on the most recent issuance. Nothing
// is emitted before the first one.
type issuedCertificateCollector struct {
	mu       sync.Mutex
	issuedAt time.Time
	notAfter time.Time
	now      func() time.Time
}

func newIssuedCertificateCollector() *issuedCertificateCollector {
	return &issuedCertificateCollector{now: time.Now}
}

func (collector *issuedCertificateCollector) record(issued certs.Archive) {
	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.issuedAt = collector.now()
	collector.notAfter = issued.NotAfter
}

func (collector *issuedCertificateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- lastIssuanceDesc
	ch <- lastNotAfterDesc
	ch <- lastExpiresInDesc
}

func (collector *issuedCertificateCollector) Collect(ch chan<- prometheus.Metric) {
	collector.mu.Lock()
	issuedAt, notAfter := collector.issuedAt, collector.notAfter
	collector.mu.Unlock()
	if issuedAt.IsZero() {
		return
	}

	secondsToExpiry := notAfter.Sub(collector.now()).Seconds()
	if secondsToExpiry < 0 {
		secondsToExpiry = 0
	}
	ch <- prometheus.MustNewConstMetric(lastIssuanceDesc, prometheus.GaugeValue, float64(issuedAt.Unix()))
	ch <- prometheus.MustNewConstMetric(lastNotAfterDesc, prometheus.GaugeValue, float64(notAfter.Unix()))
	ch <- prometheus.MustNewConstMetric(lastExpiresInDesc, prometheus.GaugeValue, secondsToExpiry)
}
