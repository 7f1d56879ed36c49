package metrics

import (
	"github.com/go-kit/kit/metrics"
	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

func counter(reg stdprometheus.Registerer, opts stdprometheus.CounterOpts, labels []string) metrics.Counter {
	cv := stdprometheus.NewCounterVec(opts, labels)
	reg.MustRegister(cv)
	return prometheus.NewCounter(cv)
}

func gauge(reg stdprometheus.Registerer, opts stdprometheus.GaugeOpts, labels []string) metrics.Gauge {
	gv := stdprometheus.NewGaugeVec(opts, labels)
	reg.MustRegister(gv)
	return prometheus.NewGauge(gv)
}

func summary(reg stdprometheus.Registerer, opts stdprometheus.SummaryOpts, labels []string) metrics.Histogram {
	sv := stdprometheus.NewSummaryVec(opts, labels)
	reg.MustRegister(sv)
	return prometheus.NewSummary(sv)
}
