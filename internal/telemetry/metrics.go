package telemetry

import (
	"strconv"
	"time"

	"github.com/crmarques/mobilectl/operation"
	"github.com/prometheus/client_golang/prometheus"
)

var requestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the Prometheus instruments of one CLI run.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	PollsTotal      *prometheus.CounterVec
	StepsTotal      *prometheus.CounterVec
}

func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mobilectl_requests_total",
			Help: "Management API requests by method and status code (0 when no response arrived).",
		}, []string{"method", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mobilectl_request_duration_seconds",
			Help:    "Management API request duration in seconds.",
			Buckets: requestDurationBuckets,
		}, []string{"method"}),
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mobilectl_operation_polls_total",
			Help: "Asynchronous operation status fetches by reported status.",
		}, []string{"status"}),
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mobilectl_plan_steps_total",
			Help: "Plan steps by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.PollsTotal, m.StepsTotal)
	return m
}

func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) ObservePoll(_ string, status operation.Status, _ int) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveStep(err error) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	m.StepsTotal.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes the gathered metrics in the node exporter textfile
// format.
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, gatherer)
}
