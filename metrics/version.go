package metrics

import (
	"runtime"

	"github.com/go-kit/kit/metrics"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

func PromVersion(reg stdprometheus.Registerer) metrics.Gauge {
	return gauge(reg, stdprometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "version",
		Help:      "Version of the governor.",
	}, []string{"version", "git_commit", "go_version"})
}

func SetVersion(g metrics.Gauge, version, commit string) {
	g.With(
		"version", version,
		"git_commit", commit,
		"go_version", runtime.Version()).Set(1)
}
