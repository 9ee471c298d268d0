// Package observability holds the bridge's Prometheus metrics and the
// gin middleware that feeds the HTTP request series.
package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	relayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "KISS frames forwarded, per link and direction.",
		},
		[]string{"link", "direction"},
	)
	relayBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "relay",
			Name:      "bytes_total",
			Help:      "Payload bytes forwarded, per link and direction.",
		},
		[]string{"link", "direction"},
	)
	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "relay",
			Name:      "framing_errors_total",
			Help:      "KISS framing errors recovered by resync, per link and direction.",
		},
		[]string{"link", "direction"},
	)
	droppedFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "relay",
			Name:      "dropped_frames_total",
			Help:      "Frames not forwarded (wrong TNC port for the link).",
		},
		[]string{"link", "direction"},
	)
	linkRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "supervisor",
			Name:      "link_restarts_total",
			Help:      "Link session restarts triggered by connection loss.",
		},
		[]string{"link"},
	)
	linkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "rax25kb",
			Subsystem: "supervisor",
			Name:      "link_state",
			Help:      "Current link state (0 connecting, 1 relaying, 2 backoff, 3 stopped).",
		},
		[]string{"link"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rax25kb",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rax25kb",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			relayFrames, relayBytes, framingErrors, droppedFrames,
			linkRestarts, linkState,
			httpRequests, httpDuration,
		)
	})
}

func RecordRelayedFrame(link, direction string, payloadBytes int) {
	RegisterMetrics()
	relayFrames.WithLabelValues(link, direction).Inc()
	relayBytes.WithLabelValues(link, direction).Add(float64(payloadBytes))
}

// RecordRelayedBytes counts relayed bytes without a frame increment,
// for links running in raw copy mode.
func RecordRelayedBytes(link, direction string, n int) {
	RegisterMetrics()
	relayBytes.WithLabelValues(link, direction).Add(float64(n))
}

func RecordFramingError(link, direction string) {
	RegisterMetrics()
	framingErrors.WithLabelValues(link, direction).Inc()
}

func RecordDroppedFrame(link, direction string) {
	RegisterMetrics()
	droppedFrames.WithLabelValues(link, direction).Inc()
}

func RecordLinkRestart(link string) {
	RegisterMetrics()
	linkRestarts.WithLabelValues(link).Inc()
}

func RecordLinkState(link string, state int) {
	RegisterMetrics()
	linkState.WithLabelValues(link).Set(float64(state))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
