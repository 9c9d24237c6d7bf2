// Package metrics exposes relay counters in the Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julienstroheker/tgc/internal/logging"
)

const namespace = "tgc"

// Direction labels
const (
	Received = "received"
	Sent     = "sent"
)

// QueueSource is anything with a name and a current depth
type QueueSource interface {
	Name() string
	Len() int
}

// Metrics holds the collectors of one relay instance
type Metrics struct {
	registry        *prometheus.Registry
	messages        *prometheus.CounterVec
	bytes           *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	sessionFailures *prometheus.CounterVec
	dialAttempts    *prometheus.CounterVec
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages relayed, by endpoint and direction.",
		}, []string{"endpoint", "direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Content bytes relayed, by endpoint and direction.",
		}, []string{"endpoint", "direction"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Connections that entered the active state.",
		}, []string{"endpoint"}),
		sessionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Sessions torn down because of a transfer or decode failure.",
		}, []string{"endpoint"}),
		dialAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_attempts_total",
			Help:      "Outbound connection attempts.",
		}, []string{"endpoint"}),
	}

	m.registry.MustRegister(m.messages, m.bytes, m.sessions, m.sessionFailures, m.dialAttempts)
	return m
}

// MessageReceived counts a message read from endpoint
func (m *Metrics) MessageReceived(endpoint string, size int) {
	m.message(endpoint, Received, size)
}

// MessageSent counts a message written to endpoint
func (m *Metrics) MessageSent(endpoint string, size int) {
	m.message(endpoint, Sent, size)
}

func (m *Metrics) message(endpoint, direction string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(endpoint, direction).Inc()
	m.bytes.WithLabelValues(endpoint, direction).Add(float64(size))
}

// SessionStarted counts a connection entering the active state
func (m *Metrics) SessionStarted(endpoint string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(endpoint).Inc()
}

// SessionFailed counts a session ended by an error
func (m *Metrics) SessionFailed(endpoint string) {
	if m == nil {
		return
	}
	m.sessionFailures.WithLabelValues(endpoint).Inc()
}

// DialAttempt counts one outbound connection attempt
func (m *Metrics) DialAttempt(endpoint string) {
	if m == nil {
		return
	}
	m.dialAttempts.WithLabelValues(endpoint).Inc()
}

// TrackQueue exports the depth of q as a gauge
func (m *Metrics) TrackQueue(q QueueSource) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Messages waiting in a relay queue.",
		ConstLabels: prometheus.Labels{"queue": q.Name()},
	}, func() float64 {
		return float64(q.Len())
	}))
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string, m *Metrics, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", logging.String("addr", addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
