// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/netvigil/netvigil/internal/logging"
	"github.com/netvigil/netvigil/internal/store"
)

// Feed fans incidents out to connected websocket clients as they are
// pushed by the pipelines. A client whose buffer is full misses that
// incident rather than blocking the publishers; it stays subscribed.
type Feed struct {
	mu      sync.Mutex
	clients map[chan store.Incident]bool
	closed  bool
	logger  *logging.Logger
}

// NewFeed builds an empty feed.
func NewFeed(logger *logging.Logger) *Feed {
	return &Feed{
		clients: map[chan store.Incident]bool{},
		logger:  logger.With("component", "incident-feed"),
	}
}

// Publish delivers an incident to every subscriber without blocking.
func (f *Feed) Publish(inc store.Incident) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.clients {
		select {
		case ch <- inc:
		default:
			// Client buffer full; this incident is skipped for it.
		}
	}
}

func (f *Feed) subscribe() chan store.Incident {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan store.Incident, 16)
	if f.closed {
		close(ch)
		return ch
	}
	f.clients[ch] = true
	return ch
}

func (f *Feed) unsubscribe(ch chan store.Incident) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clients[ch] {
		delete(f.clients, ch)
		close(ch)
	}
}

// Close detaches every subscriber; used on server shutdown.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for ch := range f.clients {
		delete(f.clients, ch)
		close(ch)
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API token middleware already gated this request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleIncidentWS upgrades the connection and streams incidents as JSON
// messages until the client goes away.
func (s *Server) handleIncidentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.feed.subscribe()
	defer s.feed.unsubscribe(ch)

	// Reader goroutine: only to detect the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case inc, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(inc); err != nil {
				return
			}
		}
	}
}
