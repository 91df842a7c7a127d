package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulingMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveBooking("first_visit", "ok")
	m.ObserveBooking("first_visit", "ok")
	m.ObserveCancellation("not_found")
	m.ObserveBusyQuery("resolver", false, 0.02)
	m.ObserveSkippedDay("virtual_follow_up")
	m.ObserveHTTP("GET", "/availability", 200)

	families, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				counts[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, counts["clinic_booking_attempts_total"])
	assert.Equal(t, 1.0, counts["clinic_booking_cancellations_total"])
	assert.Equal(t, 1.0, counts["clinic_availability_skipped_days_total"])
	assert.Equal(t, 1.0, counts["clinic_http_requests_total"])
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveBooking("first_visit", "ok")
	m.ObserveCancellation("ok")
	m.ObserveBusyQuery("booking", true, 0.1)
	m.ObserveSkippedDay("first_visit")
	m.ObserveHTTP("POST", "/appointments", 500)
}
