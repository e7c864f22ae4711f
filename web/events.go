package web

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleSSE handles Server-Sent Events connections for real-time updates.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan event, 10)

	s.sseMu.Lock()
	s.sseClients[clientChan] = struct{}{}
	s.sseMu.Unlock()

	defer func() {
		s.sseMu.Lock()
		delete(s.sseClients, clientChan)
		s.sseMu.Unlock()
	}()

	_, _ = fmt.Fprintf(w, "data: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-clientChan:
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}

// broadcastRecalculated tells every SSE client that new results are available.
func (s *Server) broadcastRecalculated() {
	data, err := json.Marshal(s.recalculatedEvent())
	if err != nil {
		s.Logger.Error().Err(err).Msg("failed to encode event")
		return
	}
	s.broadcast(event{name: "recalculated", data: string(data)})
}

// broadcast sends an event to all connected SSE clients.
func (s *Server) broadcast(ev event) {
	s.sseMu.Lock()
	defer s.sseMu.Unlock()

	for clientChan := range s.sseClients {
		select {
		case clientChan <- ev:
		default:
			// Client buffer full, skip
		}
	}
}
