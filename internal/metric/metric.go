package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the chat collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Connections prometheus.Gauge
	Handshakes  *prometheus.CounterVec
	Frames      *prometheus.CounterVec
	Delivered   prometheus.Counter
	Dropped     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_active_connections",
			Help: "Active websocket connections",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_handshakes_total",
			Help: "Websocket handshakes by result",
		}, []string{"result"}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_inbound_frames_total",
			Help: "Inbound frames by event type",
		}, []string{"type"}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_fanout_delivered_total",
			Help: "Events handed to member send queues",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_fanout_dropped_total",
			Help: "Events dropped because a member could not accept them",
		}),
	}
	reg.MustRegister(m.Connections, m.Handshakes, m.Frames, m.Delivered, m.Dropped)
	return m
}

func (m *Metrics) Connected() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) Disconnected() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) Handshake(result string) {
	if m != nil {
		m.Handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Frame(kind string) {
	if m != nil {
		m.Frames.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Fanout(delivered, dropped int) {
	if m == nil {
		return
	}
	m.Delivered.Add(float64(delivered))
	m.Dropped.Add(float64(dropped))
}
