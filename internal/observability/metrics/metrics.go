package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for availability and booking flows.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	busyQueryLatency   *prometheus.HistogramVec
	skippedDaysTotal   *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by appointment type and outcome kind",
		}, []string{"type", "outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome kind",
		}, []string{"outcome"}),
		busyQueryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "calendar",
			Name:      "busy_query_seconds",
			Help:      "Latency of calendar busy-time queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"caller", "status"}),
		skippedDaysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "skipped_days_total",
			Help:      "Days dropped from availability scans because the calendar query failed",
		}, []string{"type"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.busyQueryLatency, m.skippedDaysTotal, m.httpRequestsTotal)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(appointmentType, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(appointmentType, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBusyQuery records one busy-time round trip. caller is "resolver" or "booking".
func (m *SchedulingMetrics) ObserveBusyQuery(caller string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.busyQueryLatency.WithLabelValues(caller, status).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSkippedDay(appointmentType string) {
	if m == nil {
		return
	}
	m.skippedDaysTotal.WithLabelValues(appointmentType).Inc()
}

func (m *SchedulingMetrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
