package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	backendStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskshell",
			Subsystem: "backend",
			Name:      "starts_total",
			Help:      "Backend launches by readiness outcome",
		},
		[]string{"outcome"},
	)

	backendReadySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deskshell",
			Subsystem: "backend",
			Name:      "ready_seconds",
			Help:      "Time from launch to readiness resolution",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 30},
		},
	)

	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskshell",
			Subsystem: "backend",
			Name:      "up",
			Help:      "1 while a backend process is running",
		},
	)
)

func init() {
	prometheus.MustRegister(backendStartsTotal, backendReadySeconds, backendUp)
}
