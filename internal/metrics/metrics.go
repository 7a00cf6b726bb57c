// Package metrics holds the shell's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	WatchdogChecks      *prometheus.CounterVec
	BookingCancellation *prometheus.CounterVec
	LandingResolutions  *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WatchdogChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfare_watchdog_checks_total",
				Help: "Pending booking watchdog checks by outcome",
			},
			[]string{"outcome"},
		),
		BookingCancellation: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfare_booking_cancellations_total",
				Help: "Expired booking cancellation attempts by result",
			},
			[]string{"result"},
		),
		LandingResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfare_landing_resolutions_total",
				Help: "Resolved landing targets",
			},
			[]string{"target"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfare_api_request_duration_seconds",
				Help:    "Marketplace API request latency in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint", "status"},
		),
	}
}

// WatchdogCheck counts a watchdog check outcome.
func (m *Metrics) WatchdogCheck(outcome string) {
	if m == nil {
		return
	}
	m.WatchdogChecks.WithLabelValues(outcome).Inc()
}

// Cancellation counts a cancellation attempt result.
func (m *Metrics) Cancellation(result string) {
	if m == nil {
		return
	}
	m.BookingCancellation.WithLabelValues(result).Inc()
}

// Landing counts a resolved landing target.
func (m *Metrics) Landing(target string) {
	if m == nil {
		return
	}
	m.LandingResolutions.WithLabelValues(target).Inc()
}

// APIRequest observes an API call. status 0 means the request never got a response.
func (m *Metrics) APIRequest(method, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.APIRequestDuration.WithLabelValues(method, endpoint, label).Observe(elapsed.Seconds())
}
