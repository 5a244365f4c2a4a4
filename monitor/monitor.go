// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/matchgame/coordinator"
)

type Metrics struct {
	OnlinePlayers  prometheus.Gauge
	ActiveRooms    prometheus.Gauge
	Commands       *prometheus.CounterVec
	Rounds         *prometheus.CounterVec
	EventsDropped  *prometheus.CounterVec
	CommandLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected websocket clients",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of registered rooms",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Client commands by type and result",
		}, []string{"type", "result"}),
		Rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Finished rounds by outcome",
		}, []string{"outcome"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events that could not be queued, by type",
		}, []string{"type"}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Command processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

// Monitor owns a private registry so several instances can coexist in one
// process.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(
		m.metrics.OnlinePlayers,
		m.metrics.ActiveRooms,
		m.metrics.Commands,
		m.metrics.Rounds,
		m.metrics.EventsDropped,
		m.metrics.CommandLatency,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		}, func() float64 {
			return time.Since(m.startTime).Seconds()
		}),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

func (m *Monitor) IncOnlinePlayers() { m.metrics.OnlinePlayers.Inc() }

func (m *Monitor) DecOnlinePlayers() { m.metrics.OnlinePlayers.Dec() }

func (m *Monitor) CommandHandled(command string, kind coordinator.Kind, latency time.Duration) {
	m.metrics.Commands.WithLabelValues(command, string(kind)).Inc()
	m.metrics.CommandLatency.Observe(latency.Seconds())
}

func (m *Monitor) RoomOpened() { m.metrics.ActiveRooms.Inc() }

func (m *Monitor) RoomClosed() { m.metrics.ActiveRooms.Dec() }

func (m *Monitor) RoundFinished(outcome string) {
	m.metrics.Rounds.WithLabelValues(outcome).Inc()
}

func (m *Monitor) EventDropped(eventType string) {
	m.metrics.EventsDropped.WithLabelValues(eventType).Inc()
}

// StoreWriteDropped counts writes the persistence mirror had to discard.
func (m *Monitor) StoreWriteDropped() { m.EventDropped("store_write") }

// PublishDropped counts lifecycle events the publisher had to discard.
func (m *Monitor) PublishDropped() { m.EventDropped("amqp_publish") }
