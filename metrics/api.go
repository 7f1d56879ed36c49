package metrics

import (
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

type APIMetrics struct {
	RequestsTotal          metrics.Counter
	RequestErrorsTotal     metrics.Counter
	RequestDurationSeconds metrics.Histogram
}

// ObserveRequest records one answered request. Statuses from 400 up count
// as errors.
func (m *APIMetrics) ObserveRequest(endpoint, method string, status int, begin time.Time) {
	labels := []string{LabelEndpoint, endpoint, LabelMethod, method, LabelStatus, strconv.Itoa(status)}
	m.RequestsTotal.With(labels...).Add(1)
	if status >= 400 {
		m.RequestErrorsTotal.With(labels...).Add(1)
	}
	m.RequestDurationSeconds.With(labels...).Observe(time.Since(begin).Seconds())
}

func PromAPIMetrics(reg stdprometheus.Registerer) *APIMetrics {
	labels := []string{LabelEndpoint, LabelMethod, LabelStatus}
	return &APIMetrics{
		RequestsTotal: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "requests_total",
			Help:      "Total number of requests.",
		}, labels),
		RequestErrorsTotal: counter(reg, stdprometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "request_errors_total",
			Help:      "Total number of request errors.",
		}, labels),
		RequestDurationSeconds: summary(reg, stdprometheus.SummaryOpts{
			Namespace: Namespace,
			Subsystem: APISubsystem,
			Name:      "request_duration_seconds",
			Help:      "Time answering one request.",
		}, labels),
	}
}

func NopAPIMetrics() *APIMetrics {
	return &APIMetrics{
		RequestsTotal:          discard.NewCounter(),
		RequestErrorsTotal:     discard.NewCounter(),
		RequestDurationSeconds: discard.NewHistogram(),
	}
}
