// Copyright 2025 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/switchboard-ai/switchboard"
)

// streamWriter writes JSON-RPC responses as Server-Sent Events. One event on
// the source channel becomes exactly one SSE frame.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      jsontext.Value
	logger  *slog.Logger
	metrics *Metrics
}

// newStreamWriter prepares the response for streaming. It returns nil when
// the connection cannot flush, in which case the caller falls back to a
// plain error response.
func newStreamWriter(w http.ResponseWriter, id jsontext.Value, logger *slog.Logger, metrics *Metrics) *streamWriter {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // For Nginx proxy
	w.WriteHeader(http.StatusOK)
	return &streamWriter{w: w, flusher: flusher, id: id, logger: logger, metrics: metrics}
}

// send writes one event wrapped in a JSON-RPC response envelope.
func (s *streamWriter) send(event switchboard.TaskEvent) error {
	response := switchboard.NewResponse(s.id, event)
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write stream event: %w", err)
	}
	s.flusher.Flush()
	if s.metrics != nil {
		s.metrics.StreamEvents.Inc()
	}
	return nil
}

// run drains the event channel into the response until the channel closes
// or the client goes away.
func (s *streamWriter) run(r *http.Request, events <-chan switchboard.TaskEvent) {
	if s.metrics != nil {
		s.metrics.ActiveStreams.Inc()
		defer s.metrics.ActiveStreams.Dec()
	}
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := s.send(event); err != nil {
				s.logger.Warn("stream write failed", "task", event.EventTaskID(), "error", err)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
