// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame results for the frames counter
const (
	ResultOK       = "ok"
	ResultChecksum = "checksum"
	ResultShort    = "short"
)

// NewRegistry creates a Prometheus registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics are the per-port session counters. A nil *Metrics records nothing.
type Metrics struct {
	BytesReceived *prometheus.CounterVec // labels: port
	Frames        *prometheus.CounterVec // labels: port, result=ok|checksum|short
	Events        *prometheus.CounterVec // labels: port, kind
	State         *prometheus.GaugeVec   // labels: port
}

// NewMetrics registers and returns the session metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_bytes_received_total",
			Help: "Raw bytes received per port.",
		}, []string{"port"}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_frames_total",
			Help: "Candidate frames by validation result.",
		}, []string{"port", "result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_events_total",
			Help: "Decoded events by kind.",
		}, []string{"port", "kind"}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vigil_session_state",
			Help: "Port session state (0=closed, 1=opening, 2=open).",
		}, []string{"port"}),
	}
	reg.MustRegister(m.BytesReceived, m.Frames, m.Events, m.State)
	return m
}

func (m *Metrics) addBytes(port string, n int) {
	if m == nil {
		return
	}
	m.BytesReceived.WithLabelValues(port).Add(float64(n))
}

func (m *Metrics) frame(port, result string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(port, result).Inc()
}

func (m *Metrics) event(port, kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(port, kind).Inc()
}

func (m *Metrics) state(port string, s State) {
	if m == nil {
		return
	}
	m.State.WithLabelValues(port).Set(float64(s))
}
