/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"notesboard/internal/events"
)

// Metrics holds the service collectors, all registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	CommandsTotal       *prometheus.CounterVec
	DragEventsTotal     *prometheus.CounterVec
	SceneItems          prometheus.Gauge
	ImportBytes         prometheus.Histogram
}

// NewMetrics registers the collectors on reg; a nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{registry: reg}
	m.HTTPRequestsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesboard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	m.CommandsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesboard_commands_total",
			Help: "Board commands by name and result",
		},
		[]string{"command", "result"},
	)
	m.DragEventsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesboard_drag_events_total",
			Help: "Drag lifecycle notifications published on the board bus",
		},
		[]string{"type"},
	)
	m.SceneItems = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "notesboard_scene_items",
			Help: "Number of items currently on the board",
		},
	)
	m.ImportBytes = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notesboard_import_bytes",
			Help:    "Size of imported scene documents",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		},
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// OnDragEvent implements events.Observer.
func (m *Metrics) OnDragEvent(e events.DragEvent) {
	m.DragEventsTotal.WithLabelValues(string(e.Type)).Inc()
}

func (m *Metrics) command(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommandsTotal.WithLabelValues(name, result).Inc()
}
