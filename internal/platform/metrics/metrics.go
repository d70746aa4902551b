// Package metrics holds the prometheus collectors for reminder delivery and
// the HTTP surface.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phrazzld/miniminder/internal/events"
)

const namespace = "miniminder"

// Metrics groups every collector the service exports.
type Metrics struct {
	ReminderEventsTotal          *prometheus.CounterVec
	DeliveryDuration             *prometheus.HistogramVec
	HTTPRequestsTotal            *prometheus.CounterVec
	HTTPRequestDuration          *prometheus.HistogramVec
	HTTPRateLimitRejectionsTotal prometheus.Counter

	reg prometheus.Registerer
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReminderEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_events_total",
				Help:      "Reminder lifecycle transitions by type",
			},
			[]string{"type"},
		),
		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delivery_duration_seconds",
				Help:      "Time taken by push services to accept or reject a reminder",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests received",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		HTTPRateLimitRejectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limit_rejections_total",
				Help:      "Total number of HTTP requests rejected due to rate limiting",
			},
		),
		reg: reg,
	}

	reg.MustRegister(
		m.ReminderEventsTotal,
		m.DeliveryDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRateLimitRejectionsTotal,
	)
	return m
}

// WatchArmed exports the number of armed reminders as reported by fn.
func (m *Metrics) WatchArmed(fn func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed_reminders",
			Help:      "Reminders currently counting down",
		},
		func() float64 { return float64(fn()) },
	))
}

// HandleEvent implements events.EventHandler.
func (m *Metrics) HandleEvent(_ context.Context, e *events.ReminderEvent) error {
	m.ReminderEventsTotal.WithLabelValues(string(e.Type)).Inc()
	switch e.Type {
	case events.EventDelivered, events.EventFailed:
		if e.Duration > 0 {
			m.DeliveryDuration.WithLabelValues(string(e.Type)).Observe(e.Duration.Seconds())
		}
	}
	return nil
}

// ObserveHTTP records one completed request.
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// RateLimited records a request rejected by the limiter.
func (m *Metrics) RateLimited() {
	m.HTTPRateLimitRejectionsTotal.Inc()
}

var _ events.EventHandler = (*Metrics)(nil)
