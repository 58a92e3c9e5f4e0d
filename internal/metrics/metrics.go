// Package metrics exports funnel activity to Prometheus.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Observer records submissions, session transitions, report builds, HTTP
// traffic and webhook deliveries. A nil *Observer is a no-op.
type Observer struct {
	audits          *promclient.CounterVec
	sessions        *promclient.CounterVec
	reportDuration  *promclient.HistogramVec
	reportCache     *promclient.CounterVec
	requestDuration *promclient.HistogramVec
	webhooks        *promclient.CounterVec
}

// New registers the collectors on reg (the default registerer when nil).
// Registering twice on the same registry reuses the existing collectors.
func New(namespace string, reg promclient.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "founderaudit"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	o := &Observer{
		audits: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "audits_submitted_total",
			Help:      "Audits stored, by overall status.",
		}, []string{"overall_status"}),
		sessions: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session tracking calls, by transition and step.",
		}, []string{"event", "step"}),
		reportDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Time to load records and build a report.",
			Buckets:   promclient.DefBuckets,
		}, []string{"report"}),
		reportCache: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups, by result.",
		}, []string{"report", "result"}),
		requestDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   promclient.DefBuckets,
		}, []string{"method", "status"}),
		webhooks: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery outcomes.",
		}, []string{"event", "result"}),
	}
	var err error
	if o.audits, err = registerCounterVec(reg, o.audits); err != nil {
		return nil, err
	}
	if o.sessions, err = registerCounterVec(reg, o.sessions); err != nil {
		return nil, err
	}
	if o.reportCache, err = registerCounterVec(reg, o.reportCache); err != nil {
		return nil, err
	}
	if o.webhooks, err = registerCounterVec(reg, o.webhooks); err != nil {
		return nil, err
	}
	if o.reportDuration, err = registerHistogramVec(reg, o.reportDuration); err != nil {
		return nil, err
	}
	if o.requestDuration, err = registerHistogramVec(reg, o.requestDuration); err != nil {
		return nil, err
	}
	return o, nil
}

func registerCounterVec(reg promclient.Registerer, c *promclient.CounterVec) (*promclient.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promclient.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register counter: %w", err)
	}
	return c, nil
}

func registerHistogramVec(reg promclient.Registerer, h *promclient.HistogramVec) (*promclient.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promclient.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register histogram: %w", err)
	}
	return h, nil
}

func (o *Observer) RecordSubmission(overallStatus string) {
	if o == nil {
		return
	}
	o.audits.WithLabelValues(overallStatus).Inc()
}

func (o *Observer) RecordSession(event, step string) {
	if o == nil {
		return
	}
	o.sessions.WithLabelValues(event, step).Inc()
}

func (o *Observer) RecordReport(report string, duration time.Duration, cached bool) {
	if o == nil {
		return
	}
	if cached {
		o.reportCache.WithLabelValues(report, "hit").Inc()
		return
	}
	o.reportCache.WithLabelValues(report, "miss").Inc()
	o.reportDuration.WithLabelValues(report).Observe(duration.Seconds())
}

func (o *Observer) RecordRequest(method string, status int, duration time.Duration) {
	if o == nil {
		return
	}
	o.requestDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

func (o *Observer) RecordWebhook(event string, err error) {
	if o == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.webhooks.WithLabelValues(event, result).Inc()
}
