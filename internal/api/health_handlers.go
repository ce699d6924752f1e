// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SSE interval bounds in seconds.
const (
	sseMinSeconds = 5
	sseMaxSeconds = 300
)

// handleOverview serves the KPI bundle, HTML or JSON by Accept header.
// The HTML form is a minimal self-describing page; the real dashboard is
// an external consumer of the JSON surface.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.overview.Bundle(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, bundle)
		return
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>netvigil overview</title></head><body><pre>%s</pre></body></html>", data)
}

// handleOverviewJSON is the plain JSON fallback for JS polling.
func (s *Server) handleOverviewJSON(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.overview.Bundle(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

// handlePing is the liveness check.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStream serves the SSE KPI stream: one retry directive, then a
// data block and a comment heartbeat per interval. The interval query
// parameter is clamped to [5, 300] seconds.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	interval := s.cfg.API.SSEInterval
	if raw := r.URL.Query().Get("interval"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			interval = parsed
		}
	}
	interval = clampInterval(interval)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")

	if s.metrics != nil {
		s.metrics.SSEClients.Inc()
		defer s.metrics.SSEClients.Dec()
	}

	fmt.Fprint(w, "retry: 5000\n\n")
	flusher.Flush()

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	emit := func() {
		payload := []byte("{}")
		if bundle, err := s.overview.Bundle(r.Context()); err == nil {
			if data, err := json.Marshal(bundle); err == nil {
				payload = data
			}
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		fmt.Fprint(w, ": heartbeat\n\n")
		flusher.Flush()
	}

	emit()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			emit()
		}
	}
}

// clampInterval bounds the SSE emission interval to [5, 300] seconds.
func clampInterval(interval int) int {
	if interval < sseMinSeconds {
		return sseMinSeconds
	}
	if interval > sseMaxSeconds {
		return sseMaxSeconds
	}
	return interval
}

// wantsJSON mirrors content negotiation: JSON unless the client clearly
// prefers HTML.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	htmlIdx := strings.Index(accept, "text/html")
	jsonIdx := strings.Index(accept, "application/json")
	if htmlIdx == -1 {
		return true
	}
	if jsonIdx == -1 {
		return false
	}
	return jsonIdx < htmlIdx
}
