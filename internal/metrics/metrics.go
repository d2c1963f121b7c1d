// Package metrics exposes the daemon's Prometheus counters and gauges,
// following the registration pattern of cuemby-warren's pkg/metrics
// (promauto-registered vectors and gauges, served via promhttp.Handler()).
// There is no periodic Collect() step.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urpmd_scheduler_runs_total",
			Help: "Total scheduler task executions by task and outcome.",
		},
		[]string{"task", "outcome"},
	)

	FreshnessChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urpmd_freshness_checks_total",
			Help: "Total freshness probe outcomes by media and result.",
		},
		[]string{"media", "result"},
	)

	BytesDownloadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urpmd_bytes_downloaded_total",
			Help: "Total bytes written to the cache by the pre-download engine.",
		},
	)

	BytesCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urpmd_bytes_cleaned_total",
			Help: "Total bytes reclaimed by cache cleanup sweeps.",
		},
	)

	PredownloadErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urpmd_predownload_errors_total",
			Help: "Total per-item download errors encountered by the pre-download engine.",
		},
	)

	HostIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "urpmd_host_idle",
			Help: "Whether the host was considered idle on the most recent probe (1 = idle).",
		},
	)

	MediaCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "urpmd_media_total",
			Help: "Total number of configured media.",
		},
	)

	PeerCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "urpmd_peers_total",
			Help: "Total number of known peers.",
		},
	)
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
