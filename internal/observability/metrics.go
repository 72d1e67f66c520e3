package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hl7ctl"

// Exchange results recorded by RecordExchange.
const (
	ResultOK              = "ok"
	ResultConnectionError = "connection_error"
	ResultProtocolError   = "protocol_error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mllp",
			Name:      "exchanges_total",
			Help:      "Client request/response exchanges by result.",
		},
		[]string{"peer", "result"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mllp",
			Name:      "exchange_duration_seconds",
			Help:      "Client exchange duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"peer", "result"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "frames_received_total",
			Help:      "Frames read by the MLLP listener.",
		},
		[]string{"node", "message_type"},
	)
	acksSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "acks_sent_total",
			Help:      "Acknowledgments written by the MLLP listener, by MSA-1 code.",
		},
		[]string{"node", "code"},
	)
	activeConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Open MLLP connections on the listener.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			exchanges,
			exchangeDuration,
			framesReceived,
			acksSent,
			activeConns,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordExchange counts one client Send.
func RecordExchange(peer, result string, duration time.Duration) {
	RegisterMetrics()
	exchanges.WithLabelValues(peer, result).Inc()
	exchangeDuration.WithLabelValues(peer, result).Observe(duration.Seconds())
}

func RecordFrameReceived(node, messageType string) {
	RegisterMetrics()
	if messageType == "" {
		messageType = "unknown"
	}
	framesReceived.WithLabelValues(node, messageType).Inc()
}

func RecordAckSent(node, code string) {
	RegisterMetrics()
	acksSent.WithLabelValues(node, code).Inc()
}

func ConnOpened(node string) {
	RegisterMetrics()
	activeConns.WithLabelValues(node).Inc()
}

func ConnClosed(node string) {
	RegisterMetrics()
	activeConns.WithLabelValues(node).Dec()
}
