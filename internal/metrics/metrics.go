// Package metrics provides Prometheus metrics for kbsync runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbsync_api_requests_total",
			Help: "Total number of cloud API requests by class, method and status",
		},
		[]string{"class", "method", "status"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbsync_api_retries_total",
			Help: "Total number of retried cloud API requests",
		},
		[]string{"reason"},
	)

	transferBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbsync_transfer_bytes_total",
			Help: "Total bytes moved through signed upload/download links",
		},
		[]string{"direction"},
	)

	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbsync_actions_total",
			Help: "Total number of executed sync actions",
		},
		[]string{"action", "result"},
	)

	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbsync_scan_duration_seconds",
			Help:    "Tree scan duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side"},
	)
)

// RecordRequest counts one HTTP exchange. A zero status means no response.
func RecordRequest(class, method string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	apiRequestsTotal.WithLabelValues(class, method, label).Inc()
}

func RecordRetry(reason string) {
	retriesTotal.WithLabelValues(reason).Inc()
}

func RecordTransfer(direction string, n int64) {
	if n > 0 {
		transferBytesTotal.WithLabelValues(direction).Add(float64(n))
	}
}

func RecordAction(action string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	actionsTotal.WithLabelValues(action, result).Inc()
}

func ObserveScan(side string, d time.Duration) {
	scanDuration.WithLabelValues(side).Observe(d.Seconds())
}

// WriteTextfile dumps every registered metric in the text exposition
// format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
