package boardlink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/mdouchement/logger"
)

// A Monitor streams the state of the board to the connected clients and exposes the metrics.
type Monitor struct {
	events   chan event
	done     chan struct{}
	listener net.Listener
	metrics  *Metrics
}

func newMonitor(metrics *Metrics) *Monitor {
	return &Monitor{
		events:  make(chan event, 10),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// NewMonitor listens on the given unix socket.
func NewMonitor(socket string, metrics *Metrics) (*Monitor, error) {
	m := newMonitor(metrics)

	err := os.MkdirAll(filepath.Dir(socket), 0o755)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if _, err := os.Stat(socket); err == nil {
		fmt.Printf("Removing existing %s\n", socket)
		os.Remove(socket)
	}
	m.listener, err = net.Listen("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	return m, nil
}

// Handler serves /monitor (SSE) and /metrics.
func (m *Monitor) Handler(log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", m.monitor(log))
	if m.metrics != nil {
		mux.Handle("/metrics", m.metrics.Handler())
	}
	return mux
}

func (m *Monitor) Launch(ctx context.Context) {
	log := logger.LogWith(ctx)

	go m.eventLoop(ctx)

	if m.listener == nil {
		return
	}

	server := &http.Server{Handler: m.Handler(log)}
	go func() {
		for {
			log.Info("Starting HTTP server on", m.listener.Addr().String())
			err := server.Serve(m.listener)
			if err == http.ErrServerClosed {
				return
			}
			if err != nil {
				log.WithError(err).Error("Could not serve HTTP")
			}
			time.Sleep(2 * time.Second)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdown); err != nil {
			log.WithError(err).Error("Could not close socket listener")
		}
		if err := os.Remove(m.listener.Addr().String()); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Errorf("Could not remove socket %s", m.listener.Addr().String())
		}
	}()
}

// Publish sends the new state of the board to the watchers.
func (m *Monitor) Publish(state BoardState) {
	m.send(event{name: eventUpdate, state: state})
}

func (m *Monitor) send(e event) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.events <- e:
		return true
	case <-m.done:
		return false
	}
}

func (m *Monitor) eventLoop(ctx context.Context) {
	log := logger.LogWith(ctx)
	defer close(m.done)

	watchers := map[int64]chan<- []byte{}
	var state BoardState

	broadcast := func(targets map[int64]chan<- []byte) {
		payload, err := json.Marshal(state)
		if err != nil {
			log.WithError(err).Error("Could not serialize board state") // Should never happen
			return
		}

		for id, watcher := range targets {
			select {
			case watcher <- payload:
			default:
				log.Warnf("Monitor client %d too slow, state dropped", id)
			}
		}
	}

	for {
		select {
		case e := <-m.events:
			switch e.name {
			case eventUpdate:
				state = e.state
				broadcast(watchers)
			case eventWatch:
				watchers[e.monitorID] = e.monitor
				broadcast(map[int64]chan<- []byte{e.monitorID: e.monitor})
			case eventUnwatch:
				if watcher, ok := watchers[e.monitorID]; ok {
					close(watcher)
					delete(watchers, e.monitorID)
				}
			}
		case <-ctx.Done():
			for _, watcher := range watchers {
				close(watcher)
			}
			return
		}
	}
}

func (m *Monitor) monitor(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Client connected")

		// Set http headers required for SSE.
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		disconnected := r.Context().Done()

		id := genID()
		ch := make(chan []byte, 20)
		if !m.send(event{name: eventWatch, monitorID: id, monitor: ch}) {
			http.Error(w, "monitor stopped", http.StatusServiceUnavailable)
			return
		}

		rc := http.NewResponseController(w)
		for {
			select {
			case <-disconnected:
				log.Info("Client disconnected")
				m.send(event{name: eventUnwatch, monitorID: id})
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}

				_, err := w.Write(append(slices.Clip(payload), '\n', '\n')) // payload is shared by all watchers
				if err != nil {
					log.WithError(err).Error("Could not write monitor SSE payload")
					m.send(event{name: eventUnwatch, monitorID: id})
					return
				}

				err = rc.Flush()
				if err != nil {
					log.WithError(err).Error("Could not flush monitor SSE payload")
					m.send(event{name: eventUnwatch, monitorID: id})
					return
				}
			}
		}
	}
}
