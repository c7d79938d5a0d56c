package scan

import "github.com/prometheus/client_golang/prometheus"

// Prometheus scan metrics.
var (
	subCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanscan_subcommands_total",
			Help: "Scan sub-commands issued to the radio.",
		},
		[]string{"variant"},
	)
	upsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanscan_upserts_total",
			Help: "Scan table upserts by outcome.",
		},
		[]string{"outcome"},
	)
	parseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanscan_parse_errors_total",
			Help: "Recovered defects in radio data by kind.",
		},
		[]string{"kind"},
	)
	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wlanscan_scan_duration_seconds",
			Help:    "Scan session duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wlanscan_sessions_total",
			Help: "Scan sessions by result.",
		},
		[]string{"result"},
	)
	tableEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wlanscan_table_entries",
			Help: "Live entries in the scan table.",
		},
	)
)

func init() {
	prometheus.MustRegister(subCommandsTotal)
	prometheus.MustRegister(upsertsTotal)
	prometheus.MustRegister(parseErrorsTotal)
	prometheus.MustRegister(scanDuration)
	prometheus.MustRegister(sessionsTotal)
	prometheus.MustRegister(tableEntries)
}
