package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusAPI implements API by counting reports in prometheus collectors.
// Debug reports are dropped.
type PrometheusAPI struct {
	broken   *prometheus.CounterVec
	warnings *prometheus.CounterVec
	counts   *prometheus.GaugeVec
}

// NewPrometheusAPI creates the collectors prefixed by `namespace` and registers
// them with `registerer`.
func NewPrometheusAPI(namespace string, registerer prometheus.Registerer) (PrometheusAPI, error) {
	p := PrometheusAPI{
		broken: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_broken_total", namespace),
				Help: "Total broken component reports by id.",
			},
			[]string{"id"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_warnings_total", namespace),
				Help: "Total warning reports by id.",
			},
			[]string{"id"},
		),
		counts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: fmt.Sprintf("%s_count", namespace),
				Help: "Latest reported count by id.",
			},
			[]string{"id"},
		),
	}
	for _, c := range []prometheus.Collector{p.broken, p.warnings, p.counts} {
		err := registerer.Register(c)
		if err != nil {
			return PrometheusAPI{}, err
		}
	}
	return p, nil
}

func (p PrometheusAPI) ReportBroken(id string, params ...any) {
	p.broken.WithLabelValues(id).Inc()
}

func (p PrometheusAPI) ReportWarning(id string, params ...any) {
	p.warnings.WithLabelValues(id).Inc()
}

func (p PrometheusAPI) ReportDebug(msg string, params ...any) {}

func (p PrometheusAPI) ReportCount(id string, count int64) {
	p.counts.WithLabelValues(id).Set(float64(count))
}
