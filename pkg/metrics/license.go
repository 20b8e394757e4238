package metrics

import "github.com/prometheus/client_golang/prometheus"

// LicenseMetrics counts outcomes of the payment to license flow.
type LicenseMetrics struct {
	webhooks    *prometheus.CounterVec
	emails      *prometheus.CounterVec
	activations *prometheus.CounterVec
	demo        *prometheus.CounterVec
}

// NewLicenseMetrics registers the license flow counters on reg. A nil
// registerer yields a no-op recorder.
func NewLicenseMetrics(reg prometheus.Registerer) *LicenseMetrics {
	if reg == nil {
		return &LicenseMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wts_webhook_events_total",
		Help: "Gateway webhook deliveries by outcome.",
	}, []string{"outcome"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wts_license_emails_total",
		Help: "License email delivery attempts by result.",
	}, []string{"result"})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wts_license_activations_total",
		Help: "License activation attempts by result.",
	}, []string{"result"})
	demo := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wts_demo_decisions_total",
		Help: "Demo throttle decisions.",
	}, []string{"decision"})
	reg.MustRegister(webhooks, emails, activations, demo)
	return &LicenseMetrics{
		webhooks:    webhooks,
		emails:      emails,
		activations: activations,
		demo:        demo,
	}
}

// IncWebhook records a webhook outcome such as processed, duplicate, ignored or rejected.
func (m *LicenseMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncEmail records a license email result (sent, failed, skipped).
func (m *LicenseMetrics) IncEmail(result string) {
	if m == nil || m.emails == nil {
		return
	}
	m.emails.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncActivation records an activation result.
func (m *LicenseMetrics) IncActivation(result string) {
	if m == nil || m.activations == nil {
		return
	}
	m.activations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDemo records a demo throttle decision.
func (m *LicenseMetrics) IncDemo(decision string) {
	if m == nil || m.demo == nil {
		return
	}
	m.demo.WithLabelValues(normalizeLabel(decision)).Inc()
}
