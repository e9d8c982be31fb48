// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/triviaserver/logger"
	"github.com/wfunc/triviaserver/state"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	ActiveSessions   prometheus.Gauge
	MessagesReceived *prometheus.CounterVec
	MessageLatency   prometheus.Histogram
	AnswersSubmitted prometheus.Counter
	PhaseTransitions *prometheus.CounterVec
}

// NewMetrics registers every collector on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of players joined to a room",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open websocket sessions, players and watchers",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}, []string{"result"}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		AnswersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_submitted_total",
			Help:      "Total number of accepted answers",
		}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Room phase changes",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.ActiveSessions,
		m.MessagesReceived,
		m.MessageLatency,
		m.AnswersSubmitted,
		m.PhaseTransitions,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
	server       *http.Server
}

var publishOnce sync.Once

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		metrics:   NewMetrics(namespace, registry),
		registry:  registry,
		startTime: time.Now(),
	}
}

// Handler serves /metrics and /debug/vars.
func (m *Monitor) Handler() http.Handler {
	// 添加expvar指标
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			m.mutex.Lock()
			defer m.mutex.Unlock()
			return m.requestCount
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

func (m *Monitor) StartServer(addr string) {
	m.server = &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorw("metrics server stopped", "error", err)
		}
	}()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) IncSessions() {
	m.metrics.ActiveSessions.Inc()
}

func (m *Monitor) DecSessions() {
	m.metrics.ActiveSessions.Dec()
}

// IncMessagesReceived counts an inbound message under result ("ok",
// "error", "limited").
func (m *Monitor) IncMessagesReceived(result string) {
	m.metrics.MessagesReceived.WithLabelValues(result).Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncAnswers() {
	m.metrics.AnswersSubmitted.Inc()
}

func (m *Monitor) ObserveTransition(from, to state.Phase) {
	m.metrics.PhaseTransitions.WithLabelValues(string(from), string(to)).Inc()
}
