package boardlink

import (
	"fmt"
	"net/http"

	"github.com/mdouchement/boardlink/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts the traffic handled by a slave.
type Metrics struct {
	registry *prometheus.Registry
	frames   *prometheus.CounterVec
	refused  *prometheus.CounterVec
	restarts prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardlink",
			Name:      "frames_total",
			Help:      "Frames dispatched by opcode and response.",
		}, []string{"opcode", "response"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boardlink",
			Name:      "protocol_errors_total",
			Help:      "Frames answered with ERROR by kind.",
		}, []string{"kind"}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "boardlink",
			Name:      "restarts_total",
			Help:      "Dispatcher restarts triggered by RESET.",
		}),
	}

	m.registry.MustRegister(m.frames, m.refused, m.restarts)
	return m
}

func (m *Metrics) Observe(r Record) {
	m.frames.WithLabelValues(r.Frame.Opcode.String(), fmt.Sprintf("0x%02X", uint8(r.Response))).Inc()

	switch {
	case r.Response == protocol.ResponseError:
		m.refused.WithLabelValues(errorKind(r.Frame)).Inc()
	case r.Response == protocol.ResponseResetOK && r.Frame.Opcode == protocol.OpcodeReset:
		m.restarts.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func errorKind(f protocol.Frame) string {
	if !f.Opcode.Valid() {
		return "unknown_opcode"
	}

	switch f.Opcode {
	case protocol.OpcodePWM, protocol.OpcodeDigital:
		return "invalid_target"
	case protocol.OpcodeNeoPixel:
		return "unknown_color"
	}
	return "other"
}
