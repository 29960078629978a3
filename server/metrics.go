// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instrumentation for one server instance. Registering
// against an injected registerer keeps test servers from colliding on the
// global registry.
type Metrics struct {
	Requests          *prometheus.CounterVec
	StreamEvents      prometheus.Counter
	ActiveStreams     prometheus.Gauge
	PushNotifications *prometheus.CounterVec
}

// NewMetrics creates server metrics registered against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchboard",
			Name:      "rpc_requests_total",
			Help:      "JSON-RPC requests handled, by method and result code.",
		}, []string{"method", "code"}),
		StreamEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "switchboard",
			Name:      "stream_events_total",
			Help:      "Server-sent events written to streaming responses.",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "switchboard",
			Name:      "active_streams",
			Help:      "Streaming responses currently open.",
		}),
		PushNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchboard",
			Name:      "push_notifications_total",
			Help:      "Push notification deliveries attempted, by outcome.",
		}, []string{"outcome"}),
	}
}

// ObserveRequest records one handled request. code 0 means success.
func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
